package main

import (
	"errors"
	"net/http"
	"time"

	"bitbucket.org/shweretail/posledger_backend/display"
	"bitbucket.org/shweretail/posledger_backend/exchange"
	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/syncengine"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func registerRoutes(r *gin.Engine, engine *syncengine.Engine) {
	v1 := r.Group("/v1")

	v1.POST("/login", loginHandler)

	v1.GET("/products", listProductsHandler)
	v1.GET("/products/low-stock", lowStockHandler)
	v1.POST("/products", createProductHandler)
	v1.PUT("/products/:id", updateProductHandler)
	v1.DELETE("/products/:id", deleteProductHandler)
	v1.GET("/products/sheet", exportProductSheetHandler)
	v1.POST("/products/sheet", importProductSheetHandler)

	v1.GET("/customers", listCustomersHandler)
	v1.POST("/customers", createCustomerHandler)
	v1.PUT("/customers/:id", updateCustomerHandler)
	v1.GET("/customers/:id/credits", customerCreditsHandler)

	v1.GET("/promotions", listPromotionsHandler)
	v1.POST("/promotions", createPromotionHandler)
	v1.PUT("/promotions/:id/active", setPromotionActiveHandler)
	v1.DELETE("/promotions/:id", deletePromotionHandler)
	v1.POST("/promotions/preview", previewPromotionsHandler)

	v1.POST("/sales", recordSaleHandler)
	v1.POST("/refunds", recordRefundHandler)
	v1.POST("/stock-in", recordStockInHandler)
	v1.GET("/transactions", listTransactionsHandler)
	v1.GET("/transactions/:id", getTransactionHandler)

	v1.GET("/held-bills", listHeldBillsHandler)
	v1.POST("/held-bills", holdBillHandler)
	v1.POST("/held-bills/:id/resume", resumeHeldBillHandler)
	v1.DELETE("/held-bills/:id", deleteHeldBillHandler)

	v1.POST("/shifts/open", openShiftHandler)
	v1.POST("/shifts/close", closeShiftHandler)
	v1.GET("/shifts/current", currentShiftHandler)
	v1.GET("/shifts", listShiftsHandler)

	v1.GET("/credits", outstandingCreditsHandler)
	v1.POST("/credits/:id/settle", settleCreditHandler)

	v1.GET("/settings", getSettingsHandler)
	v1.PUT("/settings", updateSettingsHandler)

	v1.GET("/users", listUsersHandler)
	v1.POST("/users", createUserHandler)
	v1.GET("/branches", listBranchesHandler)
	v1.POST("/branches", createBranchHandler)

	v1.GET("/backup", exportStoreHandler)
	v1.POST("/backup", importStoreHandler)

	v1.POST("/display/cart", displayCartHandler)
	v1.POST("/display/clear", displayClearHandler)

	sync := v1.Group("/sync")
	sync.GET("/status", syncStatusHandler(engine))
	sync.POST("/now", syncNowHandler(engine))
	sync.POST("/online", syncOnlineHandler(engine, true))
	sync.POST("/offline", syncOnlineHandler(engine, false))
	sync.POST("/retry-failed", retryFailedHandler)
	sync.GET("/failed", listFailedHandler)
	sync.GET("/runs", syncRunsHandler)
	sync.GET("/conflicts", syncConflictsHandler)
	sync.POST("/conflicts/:id/resolve", resolveConflictHandler)
}

// sessionFrom rebuilds the operating session from the request context. The
// shift id is resolved lazily by the operations that need one.
func sessionFrom(c *gin.Context) models.Session {
	ctx := c.Request.Context()
	branchId, _ := utils.GetBranchIdFromContext(ctx)
	userId, _ := utils.GetUserIdFromContext(ctx)
	return models.Session{BranchId: branchId, UserId: userId}
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrAlreadyRefunded),
		errors.Is(err, models.ErrInvalidRefundTarget),
		errors.Is(err, models.ErrShiftAlreadyOpen),
		errors.Is(err, models.ErrNoActiveShift),
		errors.Is(err, models.ErrCreditAlreadySettled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case models.IsValidationError(err):
		var ve *models.ValidationError
		errors.As(err, &ve)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": ve.Fields})
	case errors.Is(err, exchange.ErrImportSchema):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type loginRequest struct {
	UserId string `json:"user_id"`
	Pin    string `json:"pin"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := models.VerifyUserPin(c.Request.Context(), req.UserId, req.Pin)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.ListProducts(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func lowStockHandler(c *gin.Context) {
	products, err := models.ListLowStockProducts(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func updateProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProductHandler(c *gin.Context) {
	if err := models.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func exportProductSheetHandler(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	if err := exchange.ExportProductSheet(c.Request.Context(), sessionFrom(c).BranchId, c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func importProductSheetHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	report, err := exchange.ImportProductSheet(c.Request.Context(), sessionFrom(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func listCustomersHandler(c *gin.Context) {
	customers, err := models.ListCustomers(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func updateCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func customerCreditsHandler(c *gin.Context) {
	entries, err := models.ListCustomerCredits(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func listPromotionsHandler(c *gin.Context) {
	promos, err := models.ListPromotions(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promos)
}

func createPromotionHandler(c *gin.Context) {
	var input models.NewPromotion
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	promo, err := models.CreatePromotion(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

func setPromotionActiveHandler(c *gin.Context) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	promo, err := models.SetPromotionActive(c.Request.Context(), c.Param("id"), req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

func deletePromotionHandler(c *gin.Context) {
	if err := models.DeletePromotion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// previewPromotionsHandler evaluates the current cart without recording
// anything, so the register can show the running discount live.
func previewPromotionsHandler(c *gin.Context) {
	var lines []models.CartLine
	if err := c.ShouldBindJSON(&lines); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	promos, err := models.ListActivePromotions(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.EvaluatePromotions(lines, promos))
}

func recordSaleHandler(c *gin.Context) {
	var input models.NewSale
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := models.RecordSale(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	display.PublishPayment(c.Request.Context(), txn)
	c.JSON(http.StatusCreated, txn)
}

func recordRefundHandler(c *gin.Context) {
	var input models.NewRefund
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := models.RecordRefund(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func recordStockInHandler(c *gin.Context) {
	var input models.NewStockIn
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := models.RecordStockIn(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func listTransactionsHandler(c *gin.Context) {
	filter := models.TransactionFilter{
		Type:       models.TransactionType(c.Query("type")),
		ShiftId:    c.Query("shift_id"),
		CustomerId: c.Query("customer_id"),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}
	txns, err := models.ListTransactions(c.Request.Context(), sessionFrom(c).BranchId, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func getTransactionHandler(c *gin.Context) {
	txn, err := models.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func listHeldBillsHandler(c *gin.Context) {
	bills, err := models.ListHeldBills(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

func holdBillHandler(c *gin.Context) {
	var input models.NewHeldBill
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bill, err := models.HoldBill(c.Request.Context(), sessionFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

func resumeHeldBillHandler(c *gin.Context) {
	bill, err := models.ResumeHeldBill(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func deleteHeldBillHandler(c *gin.Context) {
	if err := models.DeleteHeldBill(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func openShiftHandler(c *gin.Context) {
	var req struct {
		OpeningCash decimal.Decimal `json:"opening_cash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shift, err := models.OpenShift(c.Request.Context(), sessionFrom(c), req.OpeningCash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shift)
}

func closeShiftHandler(c *gin.Context) {
	var req struct {
		CountedCash decimal.Decimal `json:"counted_cash"`
		Note        string          `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shift, err := models.CloseShift(c.Request.Context(), sessionFrom(c), req.CountedCash, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

func currentShiftHandler(c *gin.Context) {
	shift, err := models.CurrentShift(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

func listShiftsHandler(c *gin.Context) {
	shifts, err := models.ListShifts(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shifts)
}

func outstandingCreditsHandler(c *gin.Context) {
	entries, err := models.ListOutstandingCredits(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func settleCreditHandler(c *gin.Context) {
	var req struct {
		Method models.PaymentMethod `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := models.SettleCredit(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func getSettingsHandler(c *gin.Context) {
	settings, err := models.GetSettings(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func updateSettingsHandler(c *gin.Context) {
	var input models.UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := models.UpdateSettings(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func listUsersHandler(c *gin.Context) {
	users, err := models.ListUsers(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func createUserHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := models.CreateUser(c.Request.Context(), sessionFrom(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func listBranchesHandler(c *gin.Context) {
	branches, err := models.ListBranches(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branches)
}

func createBranchHandler(c *gin.Context) {
	var input models.NewBranch
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	branch, err := models.CreateBranch(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func exportStoreHandler(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=store-backup.json")
	if err := exchange.ExportStore(c.Request.Context(), sessionFrom(c).BranchId, c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func importStoreHandler(c *gin.Context) {
	doc, err := exchange.ImportStore(c.Request.Context(), c.Request.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"branch_id":    doc.BranchId,
		"products":     len(doc.Products),
		"customers":    len(doc.Customers),
		"transactions": len(doc.Transactions),
	})
}

func displayCartHandler(c *gin.Context) {
	var req struct {
		Lines    []display.Line  `json:"lines"`
		Subtotal decimal.Decimal `json:"subtotal"`
		Discount decimal.Decimal `json:"discount"`
		Total    decimal.Decimal `json:"total"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	display.PublishCart(c.Request.Context(), sessionFrom(c).BranchId, req.Lines, req.Subtotal, req.Discount, req.Total)
	c.Status(http.StatusAccepted)
}

func displayClearHandler(c *gin.Context) {
	display.PublishCleared(c.Request.Context(), sessionFrom(c).BranchId)
	c.Status(http.StatusAccepted)
}

func syncStatusHandler(engine *syncengine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if engine == nil {
			c.JSON(http.StatusOK, gin.H{"state": "disabled"})
			return
		}
		status, err := engine.Status(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func syncNowHandler(engine *syncengine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if engine == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "sync is not configured"})
			return
		}
		engine.SyncNow()
		c.Status(http.StatusAccepted)
	}
}

func syncOnlineHandler(engine *syncengine.Engine, online bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if engine == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "sync is not configured"})
			return
		}
		engine.SetOnline(online)
		c.Status(http.StatusAccepted)
	}
}

func retryFailedHandler(c *gin.Context) {
	n, err := models.RetryFailedSyncEntries(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retried": n})
}

func listFailedHandler(c *gin.Context) {
	entries, err := models.ListFailedSyncEntries(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func syncRunsHandler(c *gin.Context) {
	runs, err := models.ListSyncRuns(c.Request.Context(), sessionFrom(c).BranchId, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func syncConflictsHandler(c *gin.Context) {
	conflicts, err := models.ListOpenSyncConflicts(c.Request.Context(), sessionFrom(c).BranchId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conflicts)
}

func resolveConflictHandler(c *gin.Context) {
	if err := models.ResolveSyncConflict(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
