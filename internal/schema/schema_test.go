package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDispatch() map[string]any {
	return map[string]any{
		"latitude":             6.5244,
		"longitude":            3.3792,
		"category":             "food",
		"product":              "rice & chicken",
		"destinationLatitude":  6.4654,
		"destinationLongitude": 3.4064,
		"vehicleType":          "motorcycle",
		"recipientName":        "Ada",
		"recipientPhoneNumber": "+234 801 234 5678",
		"phoneNumber":          "08012345678",
	}
}

func TestDispatchRequestAcceptsValidPayload(t *testing.T) {
	doc := validDispatch()
	doc["image"] = ""
	doc["quantity"] = json.Number("3")
	doc["weight"] = 1.5
	assert.Empty(t, DispatchRequest.Validate(doc))
}

func TestDispatchRequestReportsEveryViolationInOrder(t *testing.T) {
	doc := validDispatch()
	delete(doc, "latitude")
	doc["category"] = ""
	doc["vehicleType"] = "rocket"
	doc["phoneNumber"] = "call me"
	doc["extra"] = true

	msgs := DispatchRequest.Validate(doc)
	require.Equal(t, []string{
		`"latitude" is required`,
		`"category" is not allowed to be empty`,
		`"vehicleType" must be one of [car, bus, bicycle, van, truck, motorcycle]`,
		`"phoneNumber" with value "call me" fails to match the required pattern: /` + PhonePattern.String() + `/`,
		`"extra" is not allowed`,
	}, msgs)
}

func TestPhoneNumbers(t *testing.T) {
	good := []string{"+2348012345678", "08012345678", "+1 (555) 123-4567", "+44 20.7946.0958"}
	bad := []string{"", "phone", "+", "123", "12-ab-34", "+1 555 123 4567 8901 2345 6789 0123"}

	for _, p := range good {
		doc := validDispatch()
		doc["phoneNumber"] = p
		assert.Empty(t, DispatchRequest.Validate(doc), p)
	}
	for _, p := range bad {
		doc := validDispatch()
		doc["phoneNumber"] = p
		msgs := DispatchRequest.Validate(doc)
		require.NotEmpty(t, msgs, p)
		assert.Contains(t, msgs[0], `"phoneNumber"`, p)
	}
}

func TestPhoneNumberMaxLength(t *testing.T) {
	doc := validDispatch()
	doc["recipientPhoneNumber"] = strings.Repeat("1", 51)
	msgs := DispatchRequest.Validate(doc)
	assert.Contains(t, msgs, `"recipientPhoneNumber" length must be less than or equal to 50 characters long`)
}

func TestNumbersAndIntegers(t *testing.T) {
	doc := validDispatch()
	doc["latitude"] = "6.5"
	doc["quantity"] = json.Number("1.5")
	doc["weight"] = nil

	assert.Equal(t, []string{
		`"latitude" must be a number`,
		`"weight" must be a number`,
		`"quantity" must be an integer`,
	}, DispatchRequest.Validate(doc))
}

func TestImageMustBeBase64(t *testing.T) {
	doc := validDispatch()
	doc["image"] = "not base64!"
	assert.Equal(t, []string{`"image" must be a valid base64 string`}, DispatchRequest.Validate(doc))

	doc["image"] = "aGVsbG8="
	assert.Empty(t, DispatchRequest.Validate(doc))
}

func TestRequestUpdateAllowsEmptyDocument(t *testing.T) {
	assert.Empty(t, RequestUpdate.Validate(map[string]any{}))
}

func TestRequestUpdateNestedRules(t *testing.T) {
	doc := map[string]any{
		"location":            map[string]any{"latitude": 1.0},
		"packageDetails":      map[string]any{"product": "shoes", "image": "%%"},
		"selectedVehicleType": "spaceship",
		"destination":         "somewhere",
		"phoneNumber":         "nope",
	}

	assert.Equal(t, []string{
		`"location.longitude" is required`,
		`"packageDetails.category" is required`,
		`"packageDetails.image" must be a valid base64 string`,
		`"selectedVehicleType" must be one of [car, bus, bicycle, van, truck, motorcycle]`,
		`"destination" must be of type object`,
		`"phoneNumber" with value "nope" fails to match the required pattern: /` + PhonePattern.String() + `/`,
	}, RequestUpdate.Validate(doc))
}

func TestValidateValueEncodesStructs(t *testing.T) {
	type payload struct {
		Latitude float64 `json:"location"`
	}
	msgs, err := RequestUpdate.ValidateValue(payload{Latitude: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{`"location" must be of type object`}, msgs)

	msgs, err = RequestUpdate.ValidateValue([]int{1})
	require.NoError(t, err)
	assert.Equal(t, []string{`"value" must be of type object`}, msgs)
}
