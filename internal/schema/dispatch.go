package schema

import "regexp"

// PhonePattern accepts international numbers: optional +, country code,
// optional parenthesized area code and space/dot/hyphen separated groups.
var PhonePattern = regexp.MustCompile(`^\+?\d{1,4}?[-.\s]?\(?\d{1,3}?\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}$`)

const maxPhoneLen = 50

// VehicleTypes is the accepted vehicle enum, in the order used by messages.
var VehicleTypes = []string{"car", "bus", "bicycle", "van", "truck", "motorcycle"}

func phone(name string, required bool) Field {
	return Field{Name: name, Kind: String, Required: required, MaxLen: maxPhoneLen, Pattern: PhonePattern}
}

func coordinates(name string) Field {
	return Field{Name: name, Kind: Object, Keys: &Schema{Fields: []Field{
		{Name: "latitude", Kind: Number, Required: true},
		{Name: "longitude", Kind: Number, Required: true},
	}}}
}

// DispatchRequest validates a dispatch request creation payload.
var DispatchRequest = &Schema{Fields: []Field{
	{Name: "latitude", Kind: Number, Required: true},
	{Name: "longitude", Kind: Number, Required: true},
	{Name: "category", Kind: String, Required: true},
	{Name: "product", Kind: String, Required: true},
	{Name: "description", Kind: String},
	{Name: "weight", Kind: Number},
	{Name: "quantity", Kind: Integer},
	{Name: "image", Kind: String, AllowEmpty: true, Base64: true},
	{Name: "destinationLatitude", Kind: Number, Required: true},
	{Name: "destinationLongitude", Kind: Number, Required: true},
	{Name: "vehicleType", Kind: String, Required: true, OneOf: VehicleTypes},
	{Name: "recipientName", Kind: String, Required: true},
	phone("recipientPhoneNumber", true),
	{Name: "packageValue", Kind: Number},
	phone("phoneNumber", true),
	{Name: "senderName", Kind: String},
}}

// RequestUpdate validates a partial update of a request message. Every key is
// optional; present keys must satisfy their rules.
var RequestUpdate = &Schema{Fields: []Field{
	coordinates("location"),
	{Name: "packageDetails", Kind: Object, Keys: &Schema{Fields: []Field{
		{Name: "category", Kind: String, Required: true},
		{Name: "product", Kind: String, Required: true},
		{Name: "description", Kind: String},
		{Name: "weight", Kind: Number},
		{Name: "quantity", Kind: Integer},
		{Name: "image", Kind: String, AllowEmpty: true, Base64: true},
		{Name: "value", Kind: Number},
	}}},
	{Name: "selectedVehicleType", Kind: String, OneOf: VehicleTypes},
	coordinates("destination"),
	{Name: "recipientName", Kind: String},
	phone("recipientPhoneNumber", false),
	phone("phoneNumber", false),
	{Name: "senderName", Kind: String},
}}
