package schedule

import "github.com/spf13/pflag"

// TimespanValue is a pflag.Value that accepts a timespan on the command line
// and holds its cron form.
type TimespanValue struct {
	timespan string
	cron     string
}

var _ pflag.Value = (*TimespanValue)(nil)

// NewTimespanValue returns a TimespanValue preset to def. An empty def leaves
// the value unset.
func NewTimespanValue(def string) (*TimespanValue, error) {
	v := &TimespanValue{}
	if def == "" {
		return v, nil
	}
	if err := v.Set(def); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *TimespanValue) Set(s string) error {
	cron, err := TimespanToCron(s)
	if err != nil {
		return err
	}
	v.timespan, v.cron = s, cron
	return nil
}

// String returns the timespan as the user wrote it, which is what help text shows.
func (v *TimespanValue) String() string { return v.timespan }

func (v *TimespanValue) Type() string { return "timespan" }

// Cron returns the converted expression, or "" when unset.
func (v *TimespanValue) Cron() string { return v.cron }
