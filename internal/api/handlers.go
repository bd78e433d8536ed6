package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/schema"
	"github.com/kwikpik/kwikpik-go/internal/service"
)

var errBadRequest = errors.New("bad request")

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Account(businessFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, account)
}

func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.service.Wallet(r.Context(), businessFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) PayForRequest(w http.ResponseWriter, r *http.Request) {
	var in kwikpik.PaymentInput
	if err := decode(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(in.RequestID) == "" {
		h.respondError(w, r, fmt.Errorf("%w: requestId is required", errBadRequest))
		return
	}

	payment, err := h.service.Pay(r.Context(), businessFrom(r.Context()), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, payment)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	b := businessFrom(r.Context())
	if mux.Vars(r)["userId"] != b.ID {
		respondWithJSON(w, http.StatusForbidden, errorBody{Error: "cannot list another account's requests"})
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, r, fmt.Errorf("%w: page must be a positive integer", errBadRequest))
			return
		}
		page = n
	}

	list, err := h.service.List(r.Context(), b, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var in kwikpik.DispatchRequest
	if err := decodeChecked(raw, schema.DispatchRequest, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.service.Initialize(r.Context(), businessFrom(r.Context()), []kwikpik.DispatchRequest{in})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, out[0])
}

func (h *Handler) InitializeBatch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Requests []json.RawMessage `json:"requests"`
	}
	if err := decode(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	requests := make([]kwikpik.DispatchRequest, len(in.Requests))
	for i, raw := range in.Requests {
		if err := decodeChecked(raw, schema.DispatchRequest, &requests[i]); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	out, err := h.service.Initialize(r.Context(), businessFrom(r.Context()), requests)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.service.Confirm(r.Context(), businessFrom(r.Context()), []string{id})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out[0])
}

func (h *Handler) ConfirmBatch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RequestIDs []string `json:"requestIds"`
	}
	if err := decode(r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.service.Confirm(r.Context(), businessFrom(r.Context()), in.RequestIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	got, err := h.service.Get(r.Context(), businessFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, got)
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var in kwikpik.RequestUpdate
	if err := decodeChecked(raw, schema.RequestUpdate, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.service.Update(r.Context(), businessFrom(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, err := decodeRequestID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.service.Delete(r.Context(), businessFrom(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable body: %v", errBadRequest, err)
	}
	return raw, nil
}

// decodeChecked validates raw against sc as sent, so absent keys are told
// apart from zero values, and only then decodes it into v.
func decodeChecked(raw []byte, sc *schema.Schema, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return &service.ValidationError{Messages: []string{`"value" must be of type object`}}
	}
	if msgs := sc.Validate(obj); len(msgs) > 0 {
		return &service.ValidationError{Messages: msgs}
	}

	dec = json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	return nil
}

func decodeRequestID(r *http.Request) (string, error) {
	var in struct {
		RequestID string `json:"requestId"`
	}
	if err := decode(r, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.RequestID) == "" {
		return "", fmt.Errorf("%w: requestId is required", errBadRequest)
	}
	return in.RequestID, nil
}
