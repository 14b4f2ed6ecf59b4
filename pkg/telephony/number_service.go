package telephony

import (
	"fmt"

	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	lookups "github.com/twilio/twilio-go/rest/lookups/v1"
	"go.uber.org/zap"
)

// NumberService searches the carrier for available local numbers so the
// provisioning call can pass concrete candidates as number hints. If
// credentials are missing the service is disabled and provisioning falls
// back to whatever number the provider picks.
type NumberService struct {
	client  *twilio.RestClient
	enabled bool
}

// NewNumberService creates a number service. Empty credentials disable it.
func NewNumberService(accountSID, authToken string) *NumberService {
	if accountSID == "" || authToken == "" {
		logger.Base().Warn("Twilio credentials not provided, number hint search disabled")
		return &NumberService{enabled: false}
	}

	return &NumberService{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		enabled: true,
	}
}

// Enabled reports whether carrier search is available.
func (s *NumberService) Enabled() bool {
	return s.enabled
}

// SearchAvailable returns up to limit available local US numbers in the
// given area code, in E.164 form.
func (s *NumberService) SearchAvailable(areaCode string, limit int) ([]string, error) {
	if !s.enabled {
		return nil, fmt.Errorf("number service is disabled")
	}
	if limit <= 0 {
		limit = 5
	}

	params := &api.ListAvailablePhoneNumberLocalParams{}
	params.SetPageSize(limit)
	if areaCode != "" {
		var code int
		if _, err := fmt.Sscanf(areaCode, "%d", &code); err != nil {
			return nil, fmt.Errorf("invalid area code %q: %w", areaCode, err)
		}
		params.SetAreaCode(code)
	}

	available, err := s.client.Api.ListAvailablePhoneNumberLocal("US", params)
	if err != nil {
		return nil, fmt.Errorf("failed to search available numbers: %w", err)
	}

	numbers := make([]string, 0, len(available))
	for _, n := range available {
		if n.PhoneNumber != nil {
			numbers = append(numbers, *n.PhoneNumber)
		}
		if len(numbers) >= limit {
			break
		}
	}

	logger.Base().Info("carrier number search completed",
		zap.String("area_code", areaCode),
		zap.Int("found", len(numbers)),
	)
	return numbers, nil
}

// ValidateNumber checks a phone number against the carrier lookup API.
func (s *NumberService) ValidateNumber(number string) (bool, error) {
	if !s.enabled {
		return false, fmt.Errorf("number service is disabled")
	}

	_, err := s.client.LookupsV1.FetchPhoneNumber(number, &lookups.FetchPhoneNumberParams{})
	if err != nil {
		// Lookup returns 404 for numbers that do not exist
		return false, nil
	}
	return true, nil
}
