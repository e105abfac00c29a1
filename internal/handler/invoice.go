package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/handler/dto"
	"github.com/makkenzo/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	service *service.InvoiceService
	logger  *zap.Logger
}

func NewInvoiceHandler(service *service.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		logger:  logger.Named("InvoiceHandler"),
	}
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind create invoice request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	items := make([]service.LineItemInput, len(req.LineItems))
	for i, li := range req.LineItems {
		items[i] = service.LineItemInput{
			PlanID:         li.PlanID,
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
		}
	}

	res, err := h.service.CreateInvoice(c.Request.Context(), service.CreateInvoiceInput{
		InvoiceNumber: req.InvoiceNumber,
		CompanyID:     req.CompanyID,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		BankID:        req.BankID,
		LineItems:     items,
	}, requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateInvoiceResponse{
		Invoice:  dto.NewInvoiceResponse(res.Invoice),
		Licenses: dto.NewLicenseResponses(res.Licenses),
	})
}

func (h *InvoiceHandler) List(c *gin.Context) {
	var req dto.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	invs, total, err := h.service.ListInvoices(c.Request.Context(), req.Params())
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]*dto.InvoiceResponse, len(invs))
	for i, inv := range invs {
		out[i] = dto.NewInvoiceResponse(inv)
	}
	c.JSON(http.StatusOK, dto.PaginatedInvoiceResponse{
		Invoices:   out,
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(inv))
}

func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	inv, err := h.service.UpdateInvoice(c.Request.Context(), id, service.UpdateInvoiceInput{
		DueDate:       req.DueDate,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		BankID:        req.BankID,
	}, requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(inv))
}

func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.MarkInvoicePaid(c.Request.Context(), id, requestTime())
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Invoice marked paid", zap.String("invoice_id", id.String()))
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(inv))
}
