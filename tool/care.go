package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/caremesh/directory"
)

// Appointment categories accepted by book_appointment.
const (
	AppointmentNew         = "NEW"
	AppointmentEstablished = "ESTABLISHED"
)

// Static reference data returned by the insurance and self-pay tools.
const (
	acceptedInsurances = "Accepted insurances: Medicaid, UnitedHealth Care, Blue Cross Blue Shield of North Carolina, Aetna, Cigna"
	selfPayRates       = "Self-pay rates: Primary Care: $150, Orthopedics: $300, Surgery: $1000"
)

// CareTools builds the full care-coordination tool catalog over the given
// directory. now supplies the current time and is injectable for tests.
func CareTools(dir *directory.Directory, now func() time.Time) []Tool {
	if now == nil {
		now = time.Now
	}

	return []Tool{
		NewFunctionTool(
			"get_provider_info",
			"Find provider by exact name (e.g., 'Grey, Meredith', 'House, Gregory'). Returns the full provider record.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "description": "Provider name"},
				},
				"required": []string{"name"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				name, _ := args["name"].(string)
				p, ok, err := dir.FindByName(name)
				if err != nil {
					return nil, err
				}
				if !ok {
					return map[string]any{"error": fmt.Sprintf("Provider '%s' not found", name)}, nil
				}
				return map[string]any{"provider": p}, nil
			},
		),

		NewFunctionTool(
			"search_specialty",
			"Find providers by exact specialty (e.g., 'Orthopedics', 'Primary Care', 'Surgery'). Returns provider names.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"specialty": map[string]any{"type": "string", "description": "Specialty label"},
				},
				"required": []string{"specialty"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				specialty, _ := args["specialty"].(string)
				providers, err := dir.FindBySpecialty(specialty)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(providers))
				for _, p := range providers {
					names = append(names, p.Name)
				}
				return map[string]any{"providers": names}, nil
			},
		),

		NewFunctionTool(
			"provider_availability",
			"Get availability for a provider by name (e.g., 'Grey, Meredith'). Optionally filter to a single weekday (e.g., 'Tuesday').",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"provider_name": map[string]any{"type": "string", "description": "Provider name"},
					"day":           map[string]any{"type": "string", "description": "Optional weekday label to filter by"},
				},
				"required": []string{"provider_name"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				name, _ := args["provider_name"].(string)
				day, _ := args["day"].(string)
				var (
					avail []directory.Availability
					err   error
				)
				if day != "" {
					avail, err = dir.ProviderAvailabilityOnDay(name, day)
				} else {
					avail, err = dir.ProviderAvailability(name)
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{"provider": name, "availability": avail}, nil
			},
		),

		NewFunctionTool(
			"specialty_availability",
			"Get availability for all providers of an exact specialty (e.g., 'Orthopedics'). Optionally filter to a single weekday.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"specialty": map[string]any{"type": "string", "description": "Specialty label"},
					"day":       map[string]any{"type": "string", "description": "Optional weekday label to filter by"},
				},
				"required": []string{"specialty"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				specialty, _ := args["specialty"].(string)
				day, _ := args["day"].(string)
				var (
					avail []directory.Availability
					err   error
				)
				if day != "" {
					avail, err = dir.SpecialtyAvailabilityOnDay(specialty, day)
				} else {
					avail, err = dir.SpecialtyAvailability(specialty)
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{"specialty": specialty, "availability": avail}, nil
			},
		),

		NewFunctionTool(
			"get_current_date",
			"Get the current date in ISO format.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ context.Context, _ map[string]any) (any, error) {
				return now().Format("2006-01-02"), nil
			},
		),

		NewFunctionTool(
			"get_day_of_week",
			"Get the day of the week for a given date (ISO format, e.g., '2026-09-01').",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
				},
				"required": []string{"date"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				raw, _ := args["date"].(string)
				parsed, err := time.Parse("2006-01-02", raw)
				if err != nil {
					return nil, NewToolError("get_day_of_week", "invalid date format", CodeInvalidArgument)
				}
				return parsed.Weekday().String(), nil
			},
		),

		NewFunctionTool(
			"get_accepted_insurances",
			"Get the list of accepted insurances for the hospital.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ context.Context, _ map[string]any) (any, error) {
				return acceptedInsurances, nil
			},
		),

		NewFunctionTool(
			"get_self_pay_rates",
			"Get the self-pay rates for the hospital by specialty, for when insurance is not available.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ context.Context, _ map[string]any) (any, error) {
				return selfPayRates, nil
			},
		),

		NewFunctionTool(
			"book_appointment",
			"Book an appointment. Only call once the user has confirmed the proposed appointment details.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"patient_name":     map[string]any{"type": "string", "description": "Patient full name"},
					"provider_name":    map[string]any{"type": "string", "description": "Provider name"},
					"location":         map[string]any{"type": "string", "description": "Service location name"},
					"date":             map[string]any{"type": "string", "description": "Appointment date (YYYY-MM-DD)"},
					"time":             map[string]any{"type": "string", "description": "Appointment time (e.g., '10:30am')"},
					"appointment_type": map[string]any{"type": "string", "description": "NEW or ESTABLISHED; defaults to NEW"},
				},
				"required": []string{"patient_name", "provider_name", "location", "date", "time"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				providerName, _ := args["provider_name"].(string)
				_, ok, err := dir.FindByName(providerName)
				if err != nil {
					return nil, err
				}
				if !ok {
					return map[string]any{"success": false, "error": "Provider not found, please try again"}, nil
				}

				// Unknown or absent categories fall back to NEW.
				category, _ := args["appointment_type"].(string)
				duration := 30
				arrival := "30 minutes early"
				if category == AppointmentEstablished {
					duration = 15
					arrival = "10 minutes early"
				} else {
					category = AppointmentNew
				}

				return map[string]any{
					"success": true,
					"appointment": map[string]any{
						"patient_name":        args["patient_name"],
						"provider_name":       providerName,
						"location":            args["location"],
						"date":                args["date"],
						"time":                args["time"],
						"type":                category,
						"duration_minutes":    duration,
						"arrival_instruction": fmt.Sprintf("Please arrive %s", arrival),
					},
				}, nil
			},
		),
	}
}
