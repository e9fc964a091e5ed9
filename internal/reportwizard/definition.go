// Package reportwizard hosts the crime report wizard as a live component.
//
// The wizard.Controller runs server-side. Browser clicks arrive as events,
// and every effect the controller applies to its View goes back to the
// browser as js ops.
package reportwizard

import (
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

// Form field names, shared with the POST /report handler.
const (
	FieldCrimeType   = "crime_type"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldAttachment  = "attachment"
	FieldAdditional  = "additional"
)

// Page element ids.
const (
	FormID        = "reportForm"
	LocateID      = "use-location"
	AttachmentTag = "attachment-name"
)

// Labels of the geolocation trigger.
const (
	LocateLabel    = "Use my location"
	LocatingLabel  = "Detecting…"
	locateTimeout  = 10000
	coordPrecision = 6
)

// CrimeTypes are suggested in the crime type input. Any text is accepted.
var CrimeTypes = []string{"Theft", "Burglary", "Assault", "Vandalism", "Fraud", "Harassment", "Other"}

// Definition returns the three-step report wizard.
func Definition() wizard.Definition {
	return wizard.Definition{
		Steps: []wizard.Step{
			{Number: 1, Title: "Incident", Fields: []wizard.Field{
				{Name: FieldCrimeType, Label: "Type of crime", Required: true},
				{Name: FieldDescription, Label: "Description", Required: true},
			}},
			{Number: 2, Title: "Where", Fields: []wizard.Field{
				{Name: FieldLocation, Label: "Location", Required: true},
				{Name: FieldLatitude, Label: "Latitude"},
				{Name: FieldLongitude, Label: "Longitude"},
				{Name: FieldAttachment, Label: "Photo"},
			}},
			{Number: 3, Title: "Review", Fields: []wizard.Field{
				{Name: FieldAdditional, Label: "Additional notes"},
			}},
		},
		Review: []wizard.ReviewItem{
			{Target: "review-type", Field: FieldCrimeType, Label: "Type", Placeholder: wizard.PlaceholderNotProvided},
			{Target: "review-description", Field: FieldDescription, Label: "Description", Placeholder: wizard.PlaceholderNotProvided},
			{Target: "review-location", Field: FieldLocation, Label: "Location", Placeholder: wizard.PlaceholderNotProvided},
			{Target: "review-additional", Field: FieldAdditional, Label: "Additional notes", Placeholder: wizard.PlaceholderNone},
		},
	}
}
