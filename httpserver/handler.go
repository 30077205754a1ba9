package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/ccns/bridge"
	"github.com/ruteri/ccns/devnet"
	"github.com/ruteri/ccns/interfaces"
)

const (
	// CallerHeader carries the hex address on whose behalf a simulated transaction is sent.
	CallerHeader = "X-CCNS-Caller"

	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024
)

// RequestError pairs an error with the HTTP status code it maps to.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(err error) error {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: err}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrInvalidName),
		errors.Is(err, interfaces.ErrInvalidAmount),
		errors.Is(err, interfaces.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrChainNotEnabled),
		errors.Is(err, devnet.ErrUnknownNetwork),
		errors.Is(err, bridge.ErrUnknownMessage):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadySet),
		errors.Is(err, bridge.ErrNotFailed):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrInsufficientFee),
		errors.Is(err, interfaces.ErrInsufficientFunds),
		errors.Is(err, interfaces.ErrTransferFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Handler serves the operations API of a deployed devnet.
type Handler struct {
	net *devnet.Devnet
	log *slog.Logger
}

// NewHandler creates a new HTTP request handler for net.
func NewHandler(net *devnet.Devnet, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		net: net,
		log: log,
	}
}

// HandleRegister registers a name for the caller on the source chain.
//
// URL format: POST /api/v1/register
// Request body: {"name": "alice.ccns"}
// Response: the registration receipt.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	receipt, err := h.net.Source().Register.Register(r.Context(), caller, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, receipt)
}

// HandleLookup resolves a name on one network.
//
// URL format: GET /api/v1/lookup/{network}/{name}
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")
	name := chi.URLParam(r, "name")

	chain, err := h.net.Chain(network)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	owner, err := chain.Lookup.Lookup(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, LookupResponse{Network: chain.Name, Name: name, Owner: owner})
}

// HandleChains lists the destination chains enabled on the Register.
//
// URL format: GET /api/v1/chains
func (h *Handler) HandleChains(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.net.Source().Register.Chains())
}

// HandleEnableChain enables or updates a destination chain. Owner only.
//
// URL format: PUT /api/v1/admin/chains/{selector}
// Request body: {"receiver": "0x...", "strict": false, "gasLimit": 200000}
func (h *Handler) HandleEnableChain(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	selector, err := interfaces.ParseChainSelector(chi.URLParam(r, "selector"))
	if err != nil {
		h.writeError(w, r, badRequest(err))
		return
	}

	req := EnableChainRequest{GasLimit: devnet.DefaultGasLimit}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	reg := h.net.Source().Register
	if err := reg.EnableChain(r.Context(), caller, selector, req.Receiver, req.Strict, req.GasLimit); err != nil {
		h.writeError(w, r, err)
		return
	}

	cfg, err := reg.ChainConfig(selector)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// HandleDisableChain disables a destination chain. Owner only.
//
// URL format: DELETE /api/v1/admin/chains/{selector}
func (h *Handler) HandleDisableChain(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	selector, err := interfaces.ParseChainSelector(chi.URLParam(r, "selector"))
	if err != nil {
		h.writeError(w, r, badRequest(err))
		return
	}

	if err := h.net.Source().Register.DisableChain(r.Context(), caller, selector); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFund moves native currency from the caller into the Register treasury.
//
// URL format: POST /api/v1/fund
// Request body: {"amount": "1000"}
func (h *Handler) HandleFund(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req FundRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	amount, err := interfaces.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reg := h.net.Source().Register
	if err := reg.Fund(r.Context(), caller, amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Register: reg.Address(), Balance: reg.GetBalance(r.Context())})
}

// HandleWithdraw sends the whole treasury to a beneficiary. Owner only.
//
// URL format: POST /api/v1/admin/withdraw
// Request body: {"beneficiary": "0x..."}
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req WithdrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	amount, err := h.net.Source().Register.Withdraw(r.Context(), caller, req.Beneficiary)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

// HandleBalance returns the treasury balance.
//
// URL format: GET /api/v1/balance
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	reg := h.net.Source().Register
	h.writeJSON(w, http.StatusOK, BalanceResponse{Register: reg.Address(), Balance: reg.GetBalance(r.Context())})
}

// HandleRelay runs one relay pass and returns its report.
//
// URL format: POST /api/v1/relay
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	report, err := h.net.Bridge().Relay(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleMessages lists bridge messages and their execution state.
//
// URL format: GET /api/v1/messages
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.net.Bridge().Messages())
}

// HandleManualExecute re-delivers a failed message.
//
// URL format: POST /api/v1/messages/{id}/execute
func (h *Handler) HandleManualExecute(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewMessageIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, badRequest(err))
		return
	}

	network := h.net.Bridge()
	if err := network.ManualExecute(r.Context(), id); err != nil {
		if errors.Is(err, bridge.ErrNotFailed) || errors.Is(err, bridge.ErrUnknownMessage) {
			h.writeError(w, r, err)
			return
		}
		// delivery failures are reported through the message state
		h.log.Warn("Manual execution failed", slog.String("message_id", id.String()), "err", err)
	}

	msg, err := network.Message(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, msg)
}

// HandleDeployments returns the deployment record of every network.
//
// URL format: GET /api/v1/deployments
func (h *Handler) HandleDeployments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.net.Records())
}

func callerOf(r *http.Request) (common.Address, error) {
	value := r.Header.Get(CallerHeader)
	if value == "" {
		return common.Address{}, fmt.Errorf("%w: missing %s header", interfaces.ErrInvalidAddress, CallerHeader)
	}
	return interfaces.ParseAddress(value)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, slog.String("path", r.URL.Path))
	} else {
		h.log.Debug("Request rejected", "err", err, slog.String("path", r.URL.Path), slog.Int("status", status))
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
