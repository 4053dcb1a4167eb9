package handler

import (
	"net/http"

	"portal/internal/app/config"
	"portal/internal/app/logger"
	"portal/internal/app/storage"
)

const defaultDisplayName = "Investor"

var depositSteps = []string{
	"Choose your preferred crypto wallet.",
	"Complete your transaction.",
	"Take a screenshot of the transaction from your wallet after it is completed.",
	"Share the screenshot with our support team to verify the transaction.",
}

type DashboardHandler struct {
	users        storage.UserRepository
	supportEmail string
	wallets      []config.Wallet
}

func NewDashboardHandler(users storage.UserRepository, portal config.PortalConfig) (*DashboardHandler, error) {
	wallets, err := portal.Wallets()
	if err != nil {
		return nil, err
	}

	return &DashboardHandler{
		users:        users,
		supportEmail: portal.SupportEmail,
		wallets:      wallets,
	}, nil
}

type dashboardView struct {
	DisplayName  string       `json:"displayName"`
	Balance      float64      `json:"balance"`
	Deposit      depositView  `json:"deposit"`
	Withdraw     withdrawView `json:"withdraw"`
	SupportEmail string       `json:"supportEmail"`
}

type depositView struct {
	Steps   []string        `json:"steps"`
	Wallets []config.Wallet `json:"wallets"`
}

type withdrawView struct {
	Instructions string `json:"instructions"`
}

// Show renders the dashboard of the signed-in investor. Nothing is written.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Dashboard.Show")

	a, err := ReadContextAuth(ctx)
	if err != nil {
		l.Debug().Msg("Unauthenticated")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	name := a.Session.DisplayName
	if name == "" {
		name = defaultDisplayName
	}

	out := dashboardView{
		DisplayName: name,
		Balance:     readBalance(ctx, h.users, a.Session.PrincipalID).InexactFloat64(),
		Deposit: depositView{
			Steps:   depositSteps,
			Wallets: h.wallets,
		},
		Withdraw: withdrawView{
			Instructions: "Send your wallet ID to our support team to verify your withdrawal through the following email: " + h.supportEmail,
		},
		SupportEmail: h.supportEmail,
	}

	WriteResponse(w, out, http.StatusOK)
}
