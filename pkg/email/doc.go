// Package email sends transactional emails through Postmark, or to disk
// with DevSender when Postmark is not configured.
//
// TrialNotifier adapts a sender to subscription.Notifier so trial-ending
// webhook events produce a customer email.
package email
