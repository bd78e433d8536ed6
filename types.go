package kwikpik

import (
	"bytes"
	"encoding/json"
	"time"
)

// VehicleType is the vehicle a dispatch request asks for.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleBus        VehicleType = "bus"
	VehicleBicycle    VehicleType = "bicycle"
	VehicleTruck      VehicleType = "truck"
	VehicleVan        VehicleType = "van"
	VehicleMotorcycle VehicleType = "motorcycle"
)

// Valid reports whether v is one of the six accepted vehicle types.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleBus, VehicleBicycle, VehicleTruck, VehicleVan, VehicleMotorcycle:
		return true
	default:
		return false
	}
}

type UserType string

const (
	UserBusiness UserType = "BUSINESS"
	UserRegular  UserType = "REGULAR_USER"
)

// RequestStatus is owned by the server; the client only observes it.
type RequestStatus string

const (
	StatusInitialized RequestStatus = "INIT_RIDE_REQUEST"
	StatusConfirmed   RequestStatus = "CONFIRMED_RIDE_REQUEST"
	StatusDelivered   RequestStatus = "DELIVERED"
	StatusCancelled   RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

type PaymentKind string

const (
	PaymentCrypto PaymentKind = "CRYPTO"
	PaymentFiat   PaymentKind = "FIAT"
)

// Account is the authenticated business account.
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsVerified  bool      `json:"isVerified"`
	Token       string    `json:"token,omitempty"`
}

// AccountWallet holds the account's funds. The server accepts a payment only
// when Balance > BookBalance and the amount equals the request's amount. A
// payment raises BookBalance; Balance is debited once the delivery completes.
type AccountWallet struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Balance     float64   `json:"balance"`
	BookBalance float64   `json:"bookBalance"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DispatchRequest is the payload for creating a delivery request.
// Quantity, Description and Image fall back to 1, "no description" and ""
// when left at their zero values.
type DispatchRequest struct {
	Latitude             float64     `json:"latitude"`
	Longitude            float64     `json:"longitude"`
	Category             string      `json:"category"`
	Product              string      `json:"product"`
	Description          string      `json:"description,omitempty"`
	Weight               *float64    `json:"weight,omitempty"` // kg
	Quantity             int         `json:"quantity,omitempty"`
	Image                string      `json:"image"` // base64
	DestinationLatitude  float64     `json:"destinationLatitude"`
	DestinationLongitude float64     `json:"destinationLongitude"`
	VehicleType          VehicleType `json:"vehicleType"`
	RecipientName        string      `json:"recipientName"`
	RecipientPhoneNumber string      `json:"recipientPhoneNumber"`
	PackageValue         *float64    `json:"packageValue,omitempty"`
	// PhoneNumber receives the protection code for the delivery.
	PhoneNumber string `json:"phoneNumber"`
	SenderName  string `json:"senderName,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type PackageDetails struct {
	Category    string   `json:"category"`
	Product     string   `json:"product"`
	Description string   `json:"description,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	Quantity    int      `json:"quantity,omitempty"`
	Image       string   `json:"image,omitempty"`
	Value       *float64 `json:"value,omitempty"`
}

// RequestMessage is the server-normalized shape of a dispatch request.
type RequestMessage struct {
	Location             Coordinates    `json:"location"`
	UserID               string         `json:"userId"`
	PackageDetails       PackageDetails `json:"packageDetails"`
	SelectedVehicleType  VehicleType    `json:"selectedVehicleType"`
	UserType             UserType       `json:"userType"`
	Destination          Coordinates    `json:"destination"`
	RecipientPhoneNumber string         `json:"recipientPhoneNumber"`
	RecipientName        string         `json:"recipientName"`
	PhoneNumber          string         `json:"phoneNumber"`
	SenderName           string         `json:"senderName,omitempty"`
}

type SingleRequestResponse struct {
	RequestMessage
	ID          string        `json:"id"`
	Status      RequestStatus `json:"status"`
	RiderID     *string       `json:"riderId"`
	IsInTransit bool          `json:"isInTransit"`
	Amount      float64       `json:"amount"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// AccountRequest is one entry of an account's paginated request listing.
type AccountRequest struct {
	RequestMessage
	ID        string        `json:"id"`
	Status    RequestStatus `json:"status"`
	RiderID   *string       `json:"riderId"`
	InTransit bool          `json:"inTransit"`
	CreatedAt time.Time     `json:"createdAt"`
}

type InitRequestResponse struct {
	ID     string         `json:"id"`
	Data   RequestMessage `json:"data"`
	Type   string         `json:"type"`
	Amount *float64       `json:"amount,omitempty"`
}

type ConfirmRequestResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	Type string `json:"type"`
}

// InitRequestResults is the result of the legacy batch creation call, which
// answers with a single object when it carried exactly one request.
type InitRequestResults []InitRequestResponse

func (r *InitRequestResults) UnmarshalJSON(data []byte) error {
	return unmarshalOneOrMany(data, (*[]InitRequestResponse)(r))
}

// ConfirmRequestResults mirrors InitRequestResults for batch confirmation.
type ConfirmRequestResults []ConfirmRequestResponse

func (r *ConfirmRequestResults) UnmarshalJSON(data []byte) error {
	return unmarshalOneOrMany(data, (*[]ConfirmRequestResponse)(r))
}

func unmarshalOneOrMany[T any](data []byte, out *[]T) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*out = []T{one}
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

// RequestUpdate is a partial update; nil fields are left untouched.
type RequestUpdate struct {
	Location             *Coordinates    `json:"location,omitempty"`
	PackageDetails       *PackageDetails `json:"packageDetails,omitempty"`
	SelectedVehicleType  *VehicleType    `json:"selectedVehicleType,omitempty"`
	Destination          *Coordinates    `json:"destination,omitempty"`
	RecipientName        *string         `json:"recipientName,omitempty"`
	RecipientPhoneNumber *string         `json:"recipientPhoneNumber,omitempty"`
	PhoneNumber          *string         `json:"phoneNumber,omitempty"`
	SenderName           *string         `json:"senderName,omitempty"`
}

type UpdatedRequest struct {
	RequestID string `json:"requestId"`
	RequestUpdate
}

type UpdateRequestResponse struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data UpdatedRequest `json:"data"`
}

type DeleteRequestResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		RequestMessageID string `json:"requestMessageId"`
	} `json:"data"`
}

// PaymentInput pays for an initialized request from the account wallet.
type PaymentInput struct {
	RequestID string  `json:"requestId"`
	Amount    float64 `json:"amount"`
	PromoCode string  `json:"promoCode,omitempty"`
}

type Payment struct {
	ID        string        `json:"id"`
	Amount    float64       `json:"amount"`
	WalletID  string        `json:"walletId"`
	RequestID string        `json:"requestId"`
	Status    PaymentStatus `json:"status"`
	Kind      PaymentKind   `json:"kind"`
}
