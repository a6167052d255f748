// Package validator provides composable request validation rules.
//
// Each rule captures the value to check and the error to report; Apply runs
// them all and returns ValidationErrors listing every failure:
//
//	err := validator.Apply(
//		validator.InListString("plan", req.Plan, []string{"MONTHLY", "YEARLY"}),
//		validator.ValidURLWithScheme("callbackUrl", req.CallbackURL, []string{"http", "https"}),
//	)
package validator
