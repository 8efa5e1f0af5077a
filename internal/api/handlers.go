package api

import (
	"errors"
	"net/http"

	"soda-machine/internal/middleware"
	"soda-machine/internal/models"
	"soda-machine/internal/service"
	"soda-machine/pkg"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthService    service.AuthService
	MachineService service.MachineService
	Logger         pkg.Logger
	JWTSecret      string
	// Gatherer backs GET /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
}

// RegisterHandlers mounts the public, customer and operator routes on e.
func RegisterHandlers(e *echo.Echo, h *Handlers) {
	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	e.POST("/api/session", h.PostApiSession)
	e.POST("/api/operator/auth", h.PostApiOperatorAuth)

	customer := e.Group("/api", middleware.JWTAuthMiddleware(h.JWTSecret, h.Logger))
	customer.GET("/price", h.GetApiPrice)
	customer.GET("/sodas", h.GetApiSodas)
	customer.GET("/credit", h.GetApiCredit)
	customer.POST("/deposit", h.PostApiDeposit)
	customer.POST("/refund", h.PostApiRefund)
	customer.POST("/buy", h.PostApiBuy)

	admin := customer.Group("/admin", middleware.RequireRole(service.RoleOperator, h.Logger))
	admin.GET("/sodas", h.GetApiAdminSodas)
	admin.POST("/sodas", h.PostApiAdminSodas)
	admin.GET("/coins", h.GetApiAdminCoins)
	admin.POST("/coins", h.PostApiAdminCoins)
	admin.POST("/cash/empty", h.PostApiAdminCashEmpty)
	admin.GET("/income", h.GetApiAdminIncome)
	admin.PUT("/price", h.PutApiAdminPrice)
}

func (h *Handlers) PostApiSession(ctx echo.Context) error {
	userID, token, err := h.AuthService.NewSession()
	if err != nil {
		h.Logger.Error("failed to start session", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, SessionResponse{UserID: userID, Token: token})
}

func (h *Handlers) PostApiOperatorAuth(ctx echo.Context) error {
	var req OperatorAuthRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	token, err := h.AuthService.AuthenticateOperator(req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr("Invalid credentials")})
		}
		h.Logger.Error("failed to authenticate operator", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: &token})
}

func (h *Handlers) GetApiPrice(ctx echo.Context) error {
	price, err := h.MachineService.GetSodaPrice()
	if err != nil {
		h.Logger.Error("failed to get soda price", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, PriceResponse{Price: price})
}

func (h *Handlers) GetApiSodas(ctx echo.Context) error {
	sodas, err := h.MachineService.ListSodaTypes()
	if err != nil {
		h.Logger.Error("failed to list sodas", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, sodas)
}

func (h *Handlers) GetApiCredit(ctx echo.Context) error {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}

	credit, err := h.MachineService.GetMoneyInsertedTotal(userID)
	if err != nil {
		h.Logger.Error("failed to get credit", zap.String("userID", userID), zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, CreditResponse{Credit: credit})
}

func (h *Handlers) PostApiDeposit(ctx echo.Context) error {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}

	var req DepositRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	total, err := h.MachineService.Deposit(userID, req.Amount)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDenomination) {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid denomination")})
		}
		h.Logger.Error("failed to deposit", zap.String("userID", userID), zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, CreditResponse{Credit: total})
}

func (h *Handlers) PostApiRefund(ctx echo.Context) error {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}

	if err := h.MachineService.IssueFullRefund(userID); err != nil {
		h.Logger.Error("failed to refund", zap.String("userID", userID), zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Credit refunded"})
}

func (h *Handlers) PostApiBuy(ctx echo.Context) error {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Errors: ptr(err.Error())})
	}

	var req BuyRequest
	if err := ctx.Bind(&req); err != nil || req.Name == "" {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	result, err := h.MachineService.RequestSoda(models.Soda{Name: req.Name, SlotOccupied: req.Slot}, userID)
	if err != nil {
		h.Logger.Error("failed to sell soda", zap.String("userID", userID), zap.String("soda", req.Name), zap.Error(err))
		return internalError(ctx)
	}
	if result.Soda == nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr(result.Message())})
	}

	change := result.Change
	if change == nil {
		change = []models.Coin{}
	}
	return ctx.JSON(http.StatusOK, BuyResponse{
		SaleID:  result.SaleID,
		Soda:    result.Soda,
		Change:  change,
		Message: result.Message(),
	})
}

func (h *Handlers) GetApiAdminSodas(ctx echo.Context) error {
	sodas, err := h.MachineService.GetSodaInventory()
	if err != nil {
		h.Logger.Error("failed to get soda inventory", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, sodas)
}

func (h *Handlers) PostApiAdminSodas(ctx echo.Context) error {
	var req RestockSodasRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	var sodas []models.Soda
	for _, item := range req.Sodas {
		if item.Quantity <= 0 {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Quantity must be > 0")})
		}
		for i := 0; i < item.Quantity; i++ {
			sodas = append(sodas, models.Soda{Name: item.Name, SlotOccupied: item.Slot})
		}
	}

	if err := h.MachineService.AddToSodaInventory(sodas); err != nil {
		if errors.Is(err, service.ErrInvalidSoda) {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Soda name is required")})
		}
		h.Logger.Error("failed to restock sodas", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Sodas added"})
}

func (h *Handlers) GetApiAdminCoins(ctx echo.Context) error {
	coins, err := h.MachineService.GetCoinInventory()
	if err != nil {
		h.Logger.Error("failed to get coin inventory", zap.Error(err))
		return internalError(ctx)
	}

	count := make(map[string]int)
	for _, c := range coins {
		count[c.Name]++
	}
	return ctx.JSON(http.StatusOK, CoinInventoryResponse{
		Coins: coins,
		Count: count,
		Total: models.SumCoins(coins),
	})
}

func (h *Handlers) PostApiAdminCoins(ctx echo.Context) error {
	var req RestockCoinsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	var coins []models.Coin
	for _, item := range req.Coins {
		if item.Quantity <= 0 {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Quantity must be > 0")})
		}
		for i := 0; i < item.Quantity; i++ {
			coins = append(coins, models.Coin{Name: item.Name})
		}
	}

	if err := h.MachineService.AddToCoinInventory(coins); err != nil {
		if errors.Is(err, service.ErrUnknownCoin) {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Unknown coin")})
		}
		h.Logger.Error("failed to restock coins", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Coins added"})
}

func (h *Handlers) PostApiAdminCashEmpty(ctx echo.Context) error {
	amount, err := h.MachineService.EmptyMoneyFromMachine()
	if err != nil {
		h.Logger.Error("failed to empty cash", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, EmptyCashResponse{Amount: amount})
}

func (h *Handlers) GetApiAdminIncome(ctx echo.Context) error {
	cash, err := h.MachineService.GetCurrentIncome()
	if err != nil {
		h.Logger.Error("failed to get cash on hand", zap.Error(err))
		return internalError(ctx)
	}
	total, err := h.MachineService.GetTotalIncome()
	if err != nil {
		h.Logger.Error("failed to get total income", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, IncomeResponse{CashOnHand: cash, TotalIncome: total})
}

func (h *Handlers) PutApiAdminPrice(ctx echo.Context) error {
	var req PriceRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Invalid request body")})
	}

	if err := h.MachineService.SetSodaPrice(req.Price); err != nil {
		if errors.Is(err, service.ErrInvalidPrice) {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Errors: ptr("Price must not be negative")})
		}
		h.Logger.Error("failed to set price", zap.Error(err))
		return internalError(ctx)
	}
	return ctx.JSON(http.StatusOK, PriceResponse{Price: req.Price})
}

func getUserIDFromContext(ctx echo.Context) (string, error) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		return "", errUnauthorized("Unauthorized")
	}
	return userID, nil
}

func internalError(ctx echo.Context) error {
	return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Errors: ptr("Internal server error")})
}

func ptr(s string) *string {
	return &s
}

func errUnauthorized(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
