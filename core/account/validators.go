package account

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/malalamiko/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdLetterDigitTag  = "pwdletterdigit"
	pwdLetterDigitText = "password must contain at least one letter and one digit"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"

	pwdTexts = map[string]string{
		pwdMinLenTag:      pwdMinLenText,
		pwdNoSpaceTag:     pwdNoSpaceText,
		pwdLetterDigitTag: pwdLetterDigitText,
		pwdAttrSimTag:     pwdAttrSimText,
	}
)

// InitValidators registers the account validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(accountStructValidation, NewStudent{}, NewLecturer{})
	for tag, text := range pwdTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// accountStructValidation does struct level validation on NewStudent and NewLecturer structs.
func accountStructValidation(sl validator.StructLevel) {
	var pwd, name, email string
	switch acc := sl.Current().Interface().(type) {
	case NewStudent:
		pwd, name, email = acc.Password, acc.Name, acc.Email
	case NewLecturer:
		pwd, name, email = acc.Password, acc.Name, acc.Email
	default:
		return
	}
	if pwd == "" {
		return // reported by `required`
	}
	if tag := checkPassword(pwd, name, email); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// checkPassword applies the password policy and returns the tag of the first violated rule:
// - minLen: 8
// - no whitespace
// - at least one letter and one digit
// - no similarity with the account attributes
func checkPassword(pwd string, attrs ...string) string {
	if len([]rune(pwd)) < pwdMinLen {
		return pwdMinLenTag
	}

	var hasLetter, hasDigit bool
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsLetter(char) {
			hasLetter = true
		}
		if unicode.IsDigit(char) {
			hasDigit = true
		}
	}
	if !(hasLetter && hasDigit) {
		return pwdLetterDigitTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		attr = strings.ToLower(attr)
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}
	return ""
}
