package azsteps

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/microsoft/azchain/internal/stepchain"
)

var containerNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

type containerParams struct {
	AccountURL     string            `mapstructure:"account_url"`
	Container      string            `mapstructure:"container"`
	IgnoreExisting bool              `mapstructure:"ignore_existing"`
	Tags           map[string]string `mapstructure:"tags"`
}

func (p *containerParams) validate() error {
	if err := validateAccountURL(p.AccountURL); err != nil {
		return err
	}
	return validateContainerName(p.Container)
}

type copyParams struct {
	AccountURL    string            `mapstructure:"account_url"`
	Container     string            `mapstructure:"container"`
	Blob          string            `mapstructure:"blob"`
	SourceURL     string            `mapstructure:"source_url"`
	PollFrequency time.Duration     `mapstructure:"poll_frequency"`
	Tags          map[string]string `mapstructure:"tags"`
}

func (p *copyParams) validate() error {
	if err := validateAccountURL(p.AccountURL); err != nil {
		return err
	}
	if err := validateContainerName(p.Container); err != nil {
		return err
	}
	if p.Blob == "" {
		return invalidParam("blob", p.Blob, "blob name is required")
	}
	if u, err := url.Parse(p.SourceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalidParam("source_url", p.SourceURL, "source_url must be an absolute URL")
	}
	if p.PollFrequency < 0 {
		return invalidParam("poll_frequency", p.PollFrequency.String(), "poll_frequency cannot be negative")
	}
	return nil
}

type delayParams struct {
	Duration time.Duration `mapstructure:"duration"`
}

func (p *delayParams) validate() error {
	if p.Duration < 0 {
		return invalidParam("duration", p.Duration.String(), "duration cannot be negative")
	}
	return nil
}

type validator interface {
	validate() error
}

func decodeAndValidate(params stepchain.Params, out validator) error {
	if err := decodeParams(params, out); err != nil {
		return err
	}
	return out.validate()
}

// decodeParams decodes a step's parameter bag. Values written by YAML or
// by hand ("5s", "true") are converted to the field types.
func decodeParams(params stepchain.Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return errors.Wrap(err, ErrCodeInvalidParams, "invalid step parameters")
	}
	return nil
}

func validateAccountURL(raw string) error {
	if raw == "" {
		return invalidParam("account_url", raw, "account_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return invalidParam("account_url", raw, "account_url must be an https URL such as https://<account>.blob.core.windows.net/")
	}
	return nil
}

func validateContainerName(name string) error {
	if !containerNamePattern.MatchString(name) || strings.Contains(name, "--") {
		return invalidParam("container", name,
			"container names are 3-63 lowercase letters, digits and single hyphens, starting and ending with a letter or digit")
	}
	return nil
}

func invalidParam(name, value, msg string) error {
	return errors.New(ErrCodeInvalidParams, fmt.Sprintf("%s (got %q)", msg, value)).
		WithContext("param", name).
		WithContext("value", value)
}

func metadataFrom(tags map[string]string) map[string]*string {
	if len(tags) == 0 {
		return nil
	}
	md := make(map[string]*string, len(tags))
	for k, v := range tags {
		md[k] = &v
	}
	return md
}
