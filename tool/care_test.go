package tool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/caremesh/directory"
)

const careTestCatalog = `[
  {
    "name": "Grey, Meredith",
    "certification": "MD",
    "specialty": "Primary Care",
    "locations": [
      {"name": "Grey Sloan Family Medicine", "days": ["Monday", "Tuesday"], "hours": "8am-4pm"}
    ]
  },
  {
    "name": "House, Gregory",
    "certification": "MD",
    "specialty": "Orthopedics",
    "locations": [
      {"name": "PPTH Orthopedics", "days": ["Monday", "Wednesday", "Friday"], "hours": "9am-5pm"},
      {"name": "PPTH Walk-In Clinic", "days": ["Tuesday"], "hours": "1pm-6pm"}
    ]
  }
]`

func careTestTools(t *testing.T) map[string]Tool {
	t.Helper()
	dir := directory.New()
	require.NoError(t, dir.Load(strings.NewReader(careTestCatalog)))

	fixed := func() time.Time {
		return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	}

	registry := map[string]Tool{}
	for _, tl := range CareTools(dir, fixed) {
		registry[tl.Name()] = tl
	}
	return registry
}

func TestCareTools_CatalogComplete(t *testing.T) {
	registry := careTestTools(t)
	for _, name := range []string{
		"get_provider_info",
		"search_specialty",
		"provider_availability",
		"specialty_availability",
		"get_current_date",
		"get_day_of_week",
		"get_accepted_insurances",
		"get_self_pay_rates",
		"book_appointment",
	} {
		assert.Contains(t, registry, name)
	}
}

func TestGetProviderInfo(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["get_provider_info"].Call(context.Background(), map[string]any{"name": "Grey, Meredith"})
	require.NoError(t, err)
	payload := result.(map[string]any)
	provider := payload["provider"].(directory.Provider)
	assert.Equal(t, "Grey, Meredith", provider.Name)
	assert.Equal(t, "Primary Care", provider.Specialty)
}

func TestGetProviderInfo_NotFound(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["get_provider_info"].Call(context.Background(), map[string]any{"name": "Quincy Zephyrworth-Quackenbush III"})
	require.NoError(t, err)
	payload := result.(map[string]any)
	assert.Contains(t, payload["error"], "not found")
}

func TestGetProviderInfo_MissingArgument(t *testing.T) {
	registry := careTestTools(t)

	_, err := registry["get_provider_info"].Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestSearchSpecialty(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["search_specialty"].Call(context.Background(), map[string]any{"specialty": "Orthopedics"})
	require.NoError(t, err)
	payload := result.(map[string]any)
	assert.Equal(t, []string{"House, Gregory"}, payload["providers"])
}

func TestProviderAvailability(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["provider_availability"].Call(context.Background(), map[string]any{"provider_name": "House, Gregory"})
	require.NoError(t, err)
	payload := result.(map[string]any)
	avail := payload["availability"].([]directory.Availability)
	require.Len(t, avail, 2)
	assert.Equal(t, "PPTH Orthopedics", avail[0].Location)
}

func TestProviderAvailability_DayFilter(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["provider_availability"].Call(context.Background(), map[string]any{
		"provider_name": "House, Gregory",
		"day":           "Tuesday",
	})
	require.NoError(t, err)
	payload := result.(map[string]any)
	avail := payload["availability"].([]directory.Availability)
	require.Len(t, avail, 1)
	assert.Equal(t, "PPTH Walk-In Clinic", avail[0].Location)
}

func TestSpecialtyAvailability_DayFilter(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["specialty_availability"].Call(context.Background(), map[string]any{
		"specialty": "Orthopedics",
		"day":       "Wednesday",
	})
	require.NoError(t, err)
	payload := result.(map[string]any)
	avail := payload["availability"].([]directory.Availability)
	require.Len(t, avail, 1)
	assert.Equal(t, "House, Gregory", avail[0].Provider)
	assert.Equal(t, "PPTH Orthopedics", avail[0].Location)
}

func TestGetCurrentDate_UsesInjectedClock(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["get_current_date"].Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", result)
}

func TestGetDayOfWeek(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["get_day_of_week"].Call(context.Background(), map[string]any{"date": "2026-09-01"})
	require.NoError(t, err)
	assert.Equal(t, "Tuesday", result)
}

func TestGetDayOfWeek_InvalidDate(t *testing.T) {
	registry := careTestTools(t)

	_, err := registry["get_day_of_week"].Call(context.Background(), map[string]any{"date": "tomorrow"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeInvalidArgument, toolErr.Code)
}

func TestStaticReferenceData(t *testing.T) {
	registry := careTestTools(t)

	insurances, err := registry["get_accepted_insurances"].Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, insurances, "Medicaid")

	rates, err := registry["get_self_pay_rates"].Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, rates, "Orthopedics: $300")
}

// -------------------- Booking Tests --------------------

func bookingArgs(overrides map[string]any) map[string]any {
	args := map[string]any{
		"patient_name":  "John Carter",
		"provider_name": "House, Gregory",
		"location":      "PPTH Orthopedics",
		"date":          "2026-09-02",
		"time":          "10:30am",
	}
	for k, v := range overrides {
		args[k] = v
	}
	return args
}

func TestBookAppointment_DefaultsToNew(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["book_appointment"].Call(context.Background(), bookingArgs(nil))
	require.NoError(t, err)
	payload := result.(map[string]any)
	require.Equal(t, true, payload["success"])

	appt := payload["appointment"].(map[string]any)
	assert.Equal(t, "NEW", appt["type"])
	assert.Equal(t, 30, appt["duration_minutes"])
	assert.Equal(t, "Please arrive 30 minutes early", appt["arrival_instruction"])
	assert.Equal(t, "John Carter", appt["patient_name"])
}

func TestBookAppointment_Established(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["book_appointment"].Call(context.Background(), bookingArgs(map[string]any{
		"appointment_type": "ESTABLISHED",
	}))
	require.NoError(t, err)
	appt := result.(map[string]any)["appointment"].(map[string]any)
	assert.Equal(t, "ESTABLISHED", appt["type"])
	assert.Equal(t, 15, appt["duration_minutes"])
	assert.Equal(t, "Please arrive 10 minutes early", appt["arrival_instruction"])
}

func TestBookAppointment_UnknownCategoryFallsBack(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["book_appointment"].Call(context.Background(), bookingArgs(map[string]any{
		"appointment_type": "URGENT",
	}))
	require.NoError(t, err)
	appt := result.(map[string]any)["appointment"].(map[string]any)
	assert.Equal(t, "NEW", appt["type"])
}

func TestBookAppointment_ProviderNotFound(t *testing.T) {
	registry := careTestTools(t)

	result, err := registry["book_appointment"].Call(context.Background(), bookingArgs(map[string]any{
		"provider_name": "Quincy Zephyrworth-Quackenbush III",
	}))
	require.NoError(t, err)
	payload := result.(map[string]any)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "Provider not found")
}
