package loqate

const (
	emailValid         = "Valid"
	emailValidCatchAll = "Valid_CatchAll"

	phoneYes   = "Yes"
	phoneMaybe = "Maybe"
)

// EmailIsValid maps an email response code to validity. Catch-all domains
// count only when includeCatchAll is set.
func EmailIsValid(responseCode string, includeCatchAll bool) bool {
	return responseCode == emailValid || (includeCatchAll && responseCode == emailValidCatchAll)
}

// PhoneIsValid maps a phone IsValid answer to validity. "Maybe" counts only
// when includeMaybe is set.
func PhoneIsValid(answer string, includeMaybe bool) bool {
	return answer == phoneYes || (includeMaybe && answer == phoneMaybe)
}
