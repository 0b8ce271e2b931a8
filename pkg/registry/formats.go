package registry

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

func init() {
	gojsonschema.FormatCheckers.Add("cron", cronFormatChecker{})
	gojsonschema.FormatCheckers.Add("timezone", timezoneFormatChecker{})
}

// Values holding ${NAME} placeholders are only known after substitution, so
// format checks accept them.
func hasPlaceholder(s string) bool {
	return strings.Contains(s, "${")
}

// cronFormatChecker accepts standard five-field cron expressions and descriptors such as @daily.
type cronFormatChecker struct{}

func (cronFormatChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}

	if hasPlaceholder(s) {
		return true
	}

	_, err := cron.ParseStandard(s)

	return err == nil
}

type timezoneFormatChecker struct{}

func (timezoneFormatChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}

	if s == "" || hasPlaceholder(s) {
		return true
	}

	_, err := time.LoadLocation(s)

	return err == nil
}
