package web

import (
	"net/http"

	"minibus-console/internal/models"
	"minibus-console/internal/service"
	subscription_service "minibus-console/internal/service/subscription"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	assignmentService service.AssignmentService
	expiryService     service.ExpiryService
	sweeper           service.Sweeper
	busService        service.BusService
	userService       service.UserService
	log               *zap.Logger
}

func NewHandler(
	assignmentService service.AssignmentService,
	expiryService service.ExpiryService,
	sweeper service.Sweeper,
	busService service.BusService,
	userService service.UserService,
	log *zap.Logger,
) *Handler {
	return &Handler{
		assignmentService: assignmentService,
		expiryService:     expiryService,
		sweeper:           sweeper,
		busService:        busService,
		userService:       userService,
		log:               log.Named("http"),
	}
}

type createBusRequest struct {
	Name           string                 `json:"name" validate:"required,max=100"`
	Label          string                 `json:"label" validate:"max=100"`
	DriverID       string                 `json:"driverId"`
	Locations      []models.RouteLocation `json:"locations"`
	WorkingDays    []string               `json:"workingDays"`
	OperatingHours models.TimeRange       `json:"operatingHours"`
	PricePerRide   float64                `json:"pricePerRide" validate:"gte=0"`
	PricePerMonth  float64                `json:"pricePerMonth" validate:"gte=0"`
	MaxCapacity    int                    `json:"maxCapacity" validate:"required,gte=1"`
}

type assignRiderRequest struct {
	RiderID          string `json:"riderId" validate:"required"`
	SubscriptionType string `json:"subscriptionType" validate:"required"`
	LocationID       string `json:"locationId"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

type subscriptionRequest struct {
	SubscriptionType string `json:"subscriptionType" validate:"required"`
}

type driverRequest struct {
	DriverID string `json:"driverId" validate:"required"`
}

type createUserRequest struct {
	Role             string `json:"role" validate:"required,oneof=admin driver rider"`
	Name             string `json:"name" validate:"required,max=100"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergencyContact"`
	LicenseNumber    string `json:"licenseNumber"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	success(w, "ok", nil)
}

// Buses

func (h *Handler) ListBuses(w http.ResponseWriter, r *http.Request) {
	buses, err := h.busService.List(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "buses", buses)
}

func (h *Handler) CreateBus(w http.ResponseWriter, r *http.Request) {
	var req createBusRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}

	bus, err := h.busService.Create(r.Context(), &models.Bus{
		Name:           req.Name,
		Label:          req.Label,
		DriverID:       req.DriverID,
		Locations:      req.Locations,
		WorkingDays:    req.WorkingDays,
		OperatingHours: req.OperatingHours,
		PricePerRide:   req.PricePerRide,
		PricePerMonth:  req.PricePerMonth,
		MaxCapacity:    req.MaxCapacity,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	created(w, "bus created", bus)
}

func (h *Handler) GetBus(w http.ResponseWriter, r *http.Request) {
	bus, err := h.busService.Get(r.Context(), chi.URLParam(r, "busID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "bus", bus)
}

func (h *Handler) UpdateBus(w http.ResponseWriter, r *http.Request) {
	var patch models.BusPatch
	if err := readAndValidate(w, r, &patch); err != nil {
		requestError(w, err)
		return
	}

	bus, err := h.busService.Update(r.Context(), chi.URLParam(r, "busID"), patch)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "bus updated", bus)
}

func (h *Handler) DeleteBus(w http.ResponseWriter, r *http.Request) {
	if err := h.busService.Delete(r.Context(), chi.URLParam(r, "busID")); err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "bus deleted", nil)
}

func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}

	bus, err := h.busService.AssignDriver(r.Context(), chi.URLParam(r, "busID"), req.DriverID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "driver assigned", bus)
}

func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.busService.Roster(r.Context(), chi.URLParam(r, "busID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "roster", roster)
}

// Assignments

func (h *Handler) AssignRider(w http.ResponseWriter, r *http.Request) {
	var req assignRiderRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}
	subscriptionType, err := subscription_service.ParseSubscriptionType(req.SubscriptionType)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	res, err := h.assignmentService.Assign(r.Context(), req.RiderID, chi.URLParam(r, "busID"), subscriptionType, req.LocationID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if res.Created {
		created(w, "rider assigned", res)
		return
	}
	success(w, "rider assignment updated", res)
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}
	status, err := subscription_service.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	res, err := h.assignmentService.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "riderID"), chi.URLParam(r, "busID"), status)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "payment status updated", res)
}

func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}
	subscriptionType, err := subscription_service.ParseSubscriptionType(req.SubscriptionType)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	res, err := h.assignmentService.UpdateSubscriptionType(r.Context(), chi.URLParam(r, "riderID"), chi.URLParam(r, "busID"), subscriptionType)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "subscription updated", res)
}

func (h *Handler) RemoveRider(w http.ResponseWriter, r *http.Request) {
	res, err := h.assignmentService.Remove(r.Context(), chi.URLParam(r, "riderID"), chi.URLParam(r, "busID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "rider removed", res)
}

// Users

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "users", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readAndValidate(w, r, &req); err != nil {
		requestError(w, err)
		return
	}

	user, err := h.userService.Create(r.Context(), &models.User{
		Role:             req.Role,
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		LicenseNumber:    req.LicenseNumber,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	created(w, "user created", user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "user", user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if err := readAndValidate(w, r, &patch); err != nil {
		requestError(w, err)
		return
	}

	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "userID"), patch)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "user updated", user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.serviceError(w, r, err)
		return
	}
	success(w, "user deleted", nil)
}

// Maintenance

func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if report == nil {
		h.serviceError(w, r, err)
		return
	}
	if err != nil {
		h.log.Error("sweep failed", logFields(r, err)...)
		writeJSON(w, http.StatusInternalServerError, Response{
			Error:   true,
			Message: err.Error(),
			Data:    report,
		})
		return
	}
	success(w, "expired subscriptions removed", report)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.expiryService.Reconcile(r.Context())
	if err != nil {
		h.log.Error("reconcile failed", logFields(r, err)...)
		writeJSON(w, http.StatusInternalServerError, Response{
			Error:   true,
			Message: err.Error(),
			Data:    report,
		})
		return
	}
	success(w, "links reconciled", report)
}
