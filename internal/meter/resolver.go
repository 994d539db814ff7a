package meter

import (
	"fmt"
	"strings"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

// ResolveDevice finds the device whose contact equals phone after trimming.
// devices must be in registry order; the first match wins and any later
// matches are reported in Ambiguous.
func ResolveDevice(phone string, devices []domain.Device) domain.Resolution {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Resolution{State: domain.ResolutionPhoneMissing, Message: domain.MsgPhoneMissing}
	}
	if len(devices) == 0 {
		return domain.Resolution{State: domain.ResolutionNoData, Phone: phone, Message: domain.MsgNoDeviceData}
	}

	var res domain.Resolution
	for i := range devices {
		if strings.TrimSpace(devices[i].Contact) != phone {
			continue
		}
		if res.Device == nil {
			d := devices[i]
			res.Device = &d
			continue
		}
		res.Ambiguous = append(res.Ambiguous, devices[i].ID)
	}

	res.Phone = phone
	if res.Device == nil {
		res.State = domain.ResolutionNoDevice
		res.Message = fmt.Sprintf(domain.MsgNoDeviceMatchF, phone)
		return res
	}
	res.State = domain.ResolutionConnected
	return res
}
