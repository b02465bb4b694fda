package validation

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/yigit/schoolhealth/internal/app/models"
)

// Validation rule limits
var (
	// Campaign name min/max length
	NameMinLength = 2
	NameMaxLength = 200
)

var registerOnce sync.Once

// Register adds the domain tags (family, campaign_status, consent_status, campaign_name) to v
func Register(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"family": func(fl validator.FieldLevel) bool {
			_, err := models.ParseFamily(fl.Field().String())
			return err == nil
		},
		"campaign_status": func(fl validator.FieldLevel) bool {
			_, err := models.ParseCampaignStatus(fl.Field().String())
			return err == nil
		},
		"consent_status": func(fl validator.FieldLevel) bool {
			_, err := models.ParseConsentStatus(fl.Field().String())
			return err == nil
		},
		"campaign_name": func(fl validator.FieldLevel) bool {
			n := len([]rune(strings.TrimSpace(fl.Field().String())))
			return n >= NameMinLength && n <= NameMaxLength
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGinRules installs the domain tags on gin's binding validator once per process
func RegisterGinRules() error {
	var err error
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			err = Register(v)
		}
	})
	return err
}
