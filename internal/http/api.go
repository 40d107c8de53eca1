package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-api/internal/auth"
	"catalog-api/internal/domain"
	"catalog-api/internal/repository"
	"catalog-api/internal/service"
	"catalog-api/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	products  service.ProductService
	verifier  *auth.TokenVerifier
	storage   storage.Service
	bucket    string
	keyPrefix string
	logger    *logrus.Logger
}

func NewHandler(users service.UserService, products service.ProductService, verifier *auth.TokenVerifier, store storage.Service, bucket, keyPrefix string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:     users,
		products:  products,
		verifier:  verifier,
		storage:   store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	protected := api.Group("")
	protected.Use(h.requireAuth())
	{
		protected.GET("/products", h.listProducts)
		protected.GET("/products/:id", h.getProduct)
		protected.POST("/products", h.createProduct)
		protected.PUT("/products/:id", h.updateProduct)
		protected.DELETE("/products/:id", h.deleteProduct)
		protected.POST("/products/:id/image", h.uploadProductImage)
		protected.GET("/images", h.listImages)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			h.logger.WithError(err).Error("register user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "user registered",
		"user":    userToResponse(user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			h.logger.WithError(err).Error("login user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type createProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Quantity    int64   `json:"quantity"`
	Image       string  `json:"image"`
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Value       *float64 `json:"value"`
	Quantity    *int64   `json:"quantity"`
	Image       *string  `json:"image"`
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("list products")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}

	resp := make([]ProductResponse, len(products))
	for i := range products {
		resp[i] = productToResponse(products[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.respondProductError(c, err, "get product")
		return
	}

	c.JSON(http.StatusOK, productToResponse(*product))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.products.Create(c.Request.Context(), &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Value:       req.Value,
		Quantity:    req.Quantity,
		Image:       req.Image,
	})
	if err != nil {
		h.respondProductError(c, err, "create product")
		return
	}

	if user, ok := CurrentUser(c); ok {
		h.logger.WithField("user", user.Email).Infof("product %d created", product.ID)
	}
	c.JSON(http.StatusCreated, productToResponse(*product))
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.products.Update(c.Request.Context(), id, domain.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Value:       req.Value,
		Quantity:    req.Quantity,
		Image:       req.Image,
	})
	if err != nil {
		h.respondProductError(c, err, "update product")
		return
	}

	c.JSON(http.StatusOK, productToResponse(*product))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.respondProductError(c, err, "delete product")
		return
	}

	var warnings []string
	if key := h.objectKeyFromLocation(product.Image); key != "" {
		deleteCtx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		if err := h.storage.DeleteObject(deleteCtx, h.bucket, key); err != nil {
			warnings = append(warnings, fmt.Sprintf("delete image: %v", err))
		}
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		h.respondProductError(c, err, "delete product")
		return
	}

	if user, ok := CurrentUser(c); ok {
		h.logger.WithField("user", user.Email).Infof("product %d deleted", id)
	}

	resp := gin.H{"message": "product deleted"}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) uploadProductImage(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.respondProductError(c, err, "upload product image")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.WithError(err).Error("open uploaded image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	defer file.Close()

	key := h.imageKey(id, fileHeader.Filename)
	location, err := h.storage.UploadObject(c.Request.Context(), h.bucket, key, file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.logger.WithError(err).Error("upload product image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	// best effort: drop the previous image so replaced uploads don't pile up
	if oldKey := h.objectKeyFromLocation(product.Image); oldKey != "" && oldKey != key {
		if err := h.storage.DeleteObject(c.Request.Context(), h.bucket, oldKey); err != nil {
			h.logger.WithError(err).Warn("delete previous product image")
		}
	}

	updated, err := h.products.Update(c.Request.Context(), id, domain.ProductUpdate{Image: &location})
	if err != nil {
		h.respondProductError(c, err, "save product image")
		return
	}

	c.JSON(http.StatusOK, productToResponse(*updated))
}

func (h *Handler) listImages(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	prefix := c.DefaultQuery("prefix", h.keyPrefix)
	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, prefix)
	if err != nil {
		h.logger.WithError(err).Error("list images")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list images"})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) respondProductError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	default:
		h.logger.WithError(err).Error(op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func productID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) imageKey(productID int64, filename string) string {
	prefix := strings.Trim(h.keyPrefix, "/")
	key := fmt.Sprintf("products/%d/%s%s", productID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// objectKeyFromLocation extracts the object key from an s3://bucket/key
// location previously produced by the storage service. Anything else (an
// external image URL, empty field) yields "".
func (h *Handler) objectKeyFromLocation(location string) string {
	if h.storage == nil || h.bucket == "" {
		return ""
	}
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] != h.bucket || parts[1] == "" {
		return ""
	}
	return parts[1]
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProductResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Quantity    int64   `json:"quantity"`
	Image       string  `json:"image"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func productToResponse(product domain.Product) ProductResponse {
	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Value:       product.Value,
		Quantity:    product.Quantity,
		Image:       product.Image,
		CreatedAt:   product.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   product.UpdatedAt.Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
