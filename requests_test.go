package kwikpik

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/kwikpik/kwikpik-go/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() DispatchRequest {
	return DispatchRequest{
		Latitude:             6.5244,
		Longitude:            3.3792,
		Category:             "food",
		Product:              "rice & chicken",
		DestinationLatitude:  6.4654,
		DestinationLongitude: 3.4064,
		VehicleType:          VehicleMotorcycle,
		RecipientName:        "Ada",
		RecipientPhoneNumber: "+2348012345678",
		PhoneNumber:          "08012345678",
	}
}

func ptr[T any](v T) *T { return &v }

func bodyOf(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestCreateDispatchRequestAppliesDefaults(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	call, err := api.Requests.CreateDispatchRequest(validRequest())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, call.Method())
	assert.Equal(t, "/requests/init", call.Path())

	body := bodyOf(t, call.Body())
	assert.Equal(t, 1.0, body["quantity"])
	assert.Equal(t, "no description", body["description"])
	assert.Equal(t, "", body["image"])
	assert.Equal(t, "rice & chicken", body["product"])
	assert.NotContains(t, body, "weight")
}

func TestCreateDispatchRequestKeepsPresentFields(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	in := validRequest()
	in.Quantity = 4
	in.Description = "two plates"
	in.Image = "aGVsbG8="
	in.Weight = ptr(2.5)
	in.PackageValue = ptr(15000.0)
	in.SenderName = "Mama Put"

	call, err := api.Requests.CreateDispatchRequest(in)
	require.NoError(t, err)

	got, ok := call.Body().(DispatchRequest)
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestCreateDispatchRequestDoesNotMutateInput(t *testing.T) {
	api := MustInitialize("key", EnvProd)
	in := validRequest()

	_, err := api.Requests.CreateDispatchRequest(in)
	require.NoError(t, err)
	assert.Zero(t, in.Quantity)
	assert.Empty(t, in.Description)
}

func TestCreateDispatchRequestRejectsBadPhoneNumbers(t *testing.T) {
	f, api := newFakeAPI(t)

	for _, tc := range []struct {
		field  string
		mutate func(*DispatchRequest)
	}{
		{"recipientPhoneNumber", func(r *DispatchRequest) { r.RecipientPhoneNumber = "not a phone" }},
		{"phoneNumber", func(r *DispatchRequest) { r.PhoneNumber = "12-ab" }},
		{"phoneNumber", func(r *DispatchRequest) { r.PhoneNumber = strings.Repeat("9", 60) }},
	} {
		in := validRequest()
		tc.mutate(&in)

		call, err := api.Requests.CreateDispatchRequest(in)
		assert.Nil(t, call)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, tc.field)
		require.NotEmpty(t, vErr.Messages)
		assert.Contains(t, strings.Join(vErr.Messages, "\n"), `"`+tc.field+`"`)
	}
	assert.Empty(t, f.recorded())
}

func TestVehicleTypeOutsideEnumFails(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	in := validRequest()
	in.VehicleType = "helicopter"
	_, err := api.Requests.CreateDispatchRequest(in)
	assert.ErrorIs(t, err, ErrValidation)

	vt := VehicleType("boat")
	_, err = api.Requests.UpdateRequest("r1", RequestUpdate{SelectedVehicleType: &vt})
	assert.ErrorIs(t, err, ErrValidation)

	assert.False(t, vt.Valid())
	assert.True(t, VehicleVan.Valid())
}

func TestCreateDispatchRequestsSelectsPathByCount(t *testing.T) {
	api := MustInitialize("key", EnvProd)
	r1, r2 := validRequest(), validRequest()
	r2.Product = "shoes"

	batch, err := api.Requests.CreateDispatchRequests([]DispatchRequest{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, "/requests/init/batch", batch.Path())
	body := bodyOf(t, batch.Body())
	require.Contains(t, body, "requests")
	reqs := body["requests"].([]any)
	require.Len(t, reqs, 2)
	assert.Equal(t, "shoes", reqs[1].(map[string]any)["product"])
	assert.Equal(t, 1.0, reqs[0].(map[string]any)["quantity"])

	single, err := api.Requests.CreateDispatchRequests([]DispatchRequest{r1})
	require.NoError(t, err)
	assert.Equal(t, "/requests/init", single.Path())
	body = bodyOf(t, single.Body())
	assert.NotContains(t, body, "requests")
	assert.Equal(t, "rice & chicken", body["product"])
}

func TestCreateDispatchRequestsRejectsEmptyAndInvalid(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	_, err := api.Requests.CreateDispatchRequests(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bad := validRequest()
	bad.Category = ""
	_, err = api.Requests.CreateDispatchRequests([]DispatchRequest{validRequest(), bad})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{`"category" is not allowed to be empty`}, vErr.Messages)
}

func TestCreateDispatchRequestsDecodesEitherShape(t *testing.T) {
	f, api := newFakeAPI(t)
	f.respond(http.MethodPost, "/requests/init", map[string]any{"id": "one", "type": "INIT"})
	f.respond(http.MethodPost, "/requests/init/batch", []map[string]any{{"id": "a"}, {"id": "b"}})

	single, err := api.Requests.CreateDispatchRequests([]DispatchRequest{validRequest()})
	require.NoError(t, err)
	res, err := single.Send(testContext(t))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "one", res[0].ID)

	batch, err := api.Requests.CreateDispatchRequests([]DispatchRequest{validRequest(), validRequest()})
	require.NoError(t, err)
	res, err = batch.Send(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{res[0].ID, res[1].ID})
}

func TestConfirmDispatchRequests(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	_, err := api.Requests.ConfirmDispatchRequests([]string{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = api.Requests.ConfirmDispatchRequests([]string{"a", " "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	one, err := api.Requests.ConfirmDispatchRequests([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "/requests/confirm", one.Path())
	assert.Equal(t, map[string]any{"requestId": "a"}, bodyOf(t, one.Body()))

	many, err := api.Requests.ConfirmDispatchRequests([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "/requests/confirm/batch", many.Path())
	assert.Equal(t, map[string]any{"requestIds": []any{"a", "b"}}, bodyOf(t, many.Body()))
}

func TestConfirmDispatchRequestSends(t *testing.T) {
	f, api := newFakeAPI(t)
	f.respond(http.MethodPost, "/requests/confirm", map[string]any{"id": "evt", "data": "r1", "type": "CONFIRM"})

	call, err := api.Requests.ConfirmDispatchRequest("r1")
	require.NoError(t, err)
	res, err := call.Send(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, ConfirmRequestResponse{ID: "evt", Data: "r1", Type: "CONFIRM"}, res)

	hits := f.recorded()
	require.Len(t, hits, 1)
	assert.JSONEq(t, `{"requestId":"r1"}`, string(hits[0].Body))

	_, err = api.Requests.ConfirmDispatchRequest("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetSingleRequestStripsEnvelope(t *testing.T) {
	f, api := newFakeAPI(t)
	f.respond(http.MethodGet, "/requests/{id}", map[string]any{"id": "abc"})

	call, err := api.Requests.GetSingleRequest("abc")
	require.NoError(t, err)
	assert.Equal(t, "/requests/abc", call.Path())
	assert.Empty(t, f.recorded(), "building a call must not hit the network")

	res, err := call.Call(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, SingleRequestResponse{ID: "abc"}, res)

	hits := f.recorded()
	require.Len(t, hits, 1)
	assert.Equal(t, "/api/v1/requests/abc", hits[0].Path)
	assert.Equal(t, http.MethodGet, hits[0].Method)
}

func TestGetSingleRequestDecodesFullShape(t *testing.T) {
	f, api := newFakeAPI(t)
	f.HandleFunc("/api/v1/requests/r9", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{
			"id":"r9","status":"CONFIRMED_RIDE_REQUEST","riderId":null,"isInTransit":false,"amount":1250.5,
			"createdAt":"2024-01-02T03:04:05Z","updatedAt":"2024-01-02T03:04:05Z",
			"location":{"latitude":6.5,"longitude":3.3},"destination":{"latitude":6.4,"longitude":3.4},
			"userId":"u1","userType":"BUSINESS","selectedVehicleType":"van",
			"packageDetails":{"category":"food","product":"rice","description":"no description","weight":null,"quantity":1,"image":"","value":null},
			"recipientName":"Ada","recipientPhoneNumber":"+2348012345678","phoneNumber":"08012345678"}}`))
	})

	call, err := api.Requests.GetSingleRequest("r9")
	require.NoError(t, err)
	res, err := call.Call(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Status)
	assert.False(t, res.Status.Terminal())
	assert.Nil(t, res.RiderID)
	assert.Equal(t, 1250.5, res.Amount)
	assert.Equal(t, VehicleVan, res.SelectedVehicleType)
	assert.Equal(t, UserBusiness, res.UserType)
	assert.Equal(t, "rice", res.PackageDetails.Product)
	assert.Nil(t, res.PackageDetails.Weight)
	assert.Equal(t, 6.4, res.Destination.Latitude)
}

func TestUpdateRequestSendsOnlyPresentFields(t *testing.T) {
	f, api := newFakeAPI(t)
	f.respond(http.MethodPatch, "/requests/{id}", map[string]any{
		"id": "evt", "type": "UPDATE", "data": map[string]any{"requestId": "r1", "recipientName": "Bola"},
	})

	call, err := api.Requests.UpdateRequest("r1", RequestUpdate{RecipientName: ptr("Bola")})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, call.Method())
	assert.Equal(t, "/requests/r1", call.Path())

	res, err := call.Send(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "r1", res.Data.RequestID)
	require.NotNil(t, res.Data.RecipientName)
	assert.Equal(t, "Bola", *res.Data.RecipientName)

	hits := f.recorded()
	require.Len(t, hits, 1)
	assert.JSONEq(t, `{"recipientName":"Bola"}`, string(hits[0].Body))
}

func TestUpdateRequestValidation(t *testing.T) {
	api := MustInitialize("key", EnvProd)

	_, err := api.Requests.UpdateRequest("r1", RequestUpdate{
		PhoneNumber:    ptr("phone"),
		PackageDetails: &PackageDetails{Product: "rice"},
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{
		`"packageDetails.category" is not allowed to be empty`,
		`"phoneNumber" with value "phone" fails to match the required pattern: /` + schema.PhonePattern.String() + `/`,
	}, vErr.Messages)

	_, err = api.Requests.UpdateRequest("", RequestUpdate{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	ok, err := api.Requests.UpdateRequest("r1", RequestUpdate{
		Location:       &Coordinates{Latitude: 1, Longitude: 2},
		PackageDetails: &PackageDetails{Category: "food", Product: "rice", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"location":       map[string]any{"latitude": 1.0, "longitude": 2.0},
		"packageDetails": map[string]any{"category": "food", "product": "rice", "quantity": 2.0},
	}, bodyOf(t, ok.Body()))
}

func TestDeleteRequest(t *testing.T) {
	f, api := newFakeAPI(t)
	f.respond(http.MethodDelete, "/requests", map[string]any{
		"id": "evt", "type": "DELETE", "data": map[string]any{"requestMessageId": "r1"},
	})

	_, err := api.Requests.DeleteRequest("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, f.recorded())

	call, err := api.Requests.DeleteRequest("r1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, call.Method())
	assert.Equal(t, "/requests", call.Path())
	assert.Equal(t, map[string]any{"requestId": "r1"}, bodyOf(t, call.Body()))

	res, err := call.Send(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "r1", res.Data.RequestMessageID)

	hits := f.recorded()
	require.Len(t, hits, 1)
	assert.JSONEq(t, `{"requestId":"r1"}`, string(hits[0].Body))
}
