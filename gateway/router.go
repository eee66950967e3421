package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DavNej/lending-protocol/lending"
)

// Ledger is the read-only query surface the gateway exposes. Mutating
// operations require a caller identity the gateway cannot authenticate, so
// they are deliberately absent.
type Ledger interface {
	GetPool(asset common.Address) (*lending.Pool, error)
	GetLoan(loanID uint64) (*lending.Loan, error)
	GetScaledCollateralRatio(asset common.Address) (*big.Int, error)
}

// ShareSupplier resolves a share token's outstanding supply without granting
// mint or burn rights.
type ShareSupplier interface {
	ShareSupply(token common.Address) (*big.Int, error)
}

type router struct {
	ledger Ledger
	shares ShareSupplier
}

// NewRouter builds the gateway HTTP handler. The shares supplier may be nil;
// pool responses then omit the share supply field.
func NewRouter(ledger Ledger, shares ShareSupplier) http.Handler {
	rt := &router{ledger: ledger, shares: shares}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestMetrics)
	r.Get("/healthz", rt.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools/{asset}", rt.getPool)
		r.Get("/loans/{id}", rt.getLoan)
		r.Get("/collateral-ratios/{asset}", rt.getCollateralRatio)
	})
	return r
}

type poolResponse struct {
	Asset              string `json:"asset"`
	ShareToken         string `json:"shareToken"`
	LastRateUpdate     int64  `json:"lastRateUpdate"`
	ScaledInterestRate string `json:"scaledInterestRate"`
	TotalBorrowed      string `json:"totalBorrowed"`
	ShareSupply        string `json:"shareSupply,omitempty"`
}

type loanResponse struct {
	ID               uint64 `json:"id"`
	Borrower         string `json:"borrower"`
	Asset            string `json:"asset"`
	Principal        string `json:"principal"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount string `json:"collateralAmount"`
	ScaledBorrowRate string `json:"scaledBorrowRate"`
	InterestDue      string `json:"interestDue"`
	LastAccrual      int64  `json:"lastAccrual"`
}

type ratioResponse struct {
	Asset       string `json:"asset"`
	ScaledRatio string `json:"scaledRatio"`
}

func (rt *router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *router) getPool(w http.ResponseWriter, r *http.Request) {
	asset, ok := parseAddress(w, chi.URLParam(r, "asset"))
	if !ok {
		return
	}
	pool, err := rt.ledger.GetPool(asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := poolResponse{
		Asset:              pool.Asset.Hex(),
		ShareToken:         pool.ShareToken.Hex(),
		LastRateUpdate:     pool.LastRateUpdate,
		ScaledInterestRate: decimal(pool.ScaledInterestRate),
		TotalBorrowed:      decimal(pool.TotalBorrowed),
	}
	if rt.shares != nil && pool.Exists() {
		if supply, err := rt.shares.ShareSupply(pool.ShareToken); err == nil {
			resp.ShareSupply = decimal(supply)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *router) getLoan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := rt.ledger.GetLoan(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, loanResponse{
		ID:               loan.ID,
		Borrower:         loan.Borrower.Hex(),
		Asset:            loan.Asset.Hex(),
		Principal:        decimal(loan.Principal),
		CollateralAsset:  loan.CollateralAsset.Hex(),
		CollateralAmount: decimal(loan.CollateralAmount),
		ScaledBorrowRate: decimal(loan.ScaledBorrowRate),
		InterestDue:      decimal(loan.InterestDue),
		LastAccrual:      loan.LastAccrual,
	})
}

func (rt *router) getCollateralRatio(w http.ResponseWriter, r *http.Request) {
	asset, ok := parseAddress(w, chi.URLParam(r, "asset"))
	if !ok {
		return
	}
	ratio, err := rt.ledger.GetScaledCollateralRatio(asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ratioResponse{Asset: asset.Hex(), ScaledRatio: decimal(ratio)})
}

func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address: " + raw})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
