package exposure

import "github.com/pvries86/hass-ga-autoexpose/internal/platform"

// Reason explains an inclusion decision.
type Reason string

// Decision reasons, in rule order.
const (
	ReasonNeverExposed     Reason = "never_exposed"
	ReasonExplicitTrue     Reason = "explicit_true"
	ReasonExplicitFalse    Reason = "explicit_false"
	ReasonDefaultOff       Reason = "default_off"
	ReasonDomainNotExposed Reason = "domain_not_exposed"
	ReasonDefaultDomain    Reason = "default_domain"
)

// Decision is the outcome of the inclusion rules for one entity.
type Decision struct {
	EntityID string `json:"entity_id"`
	Include  bool   `json:"include"`
	Reason   Reason `json:"reason"`
}

// Decide applies the inclusion rules to one setting.
func Decide(setting platform.ExposureSetting, global platform.GlobalExposureConfig, neverExposed bool) Decision {
	d := Decision{EntityID: setting.EntityID}

	switch {
	case neverExposed:
		d.Reason = ReasonNeverExposed
	case setting.ShouldExpose == platform.ExposeTrue:
		d.Include, d.Reason = true, ReasonExplicitTrue
	case setting.ShouldExpose == platform.ExposeFalse:
		d.Reason = ReasonExplicitFalse
	case !global.ExposeByDefault:
		d.Reason = ReasonDefaultOff
	case !global.DomainExposed(platform.Domain(setting.EntityID)):
		d.Reason = ReasonDomainNotExposed
	default:
		d.Include, d.Reason = true, ReasonDefaultDomain
	}
	return d
}
