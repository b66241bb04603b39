package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/ofertabot/internal/models"
)

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Title         string          `json:"title"`
	Price         float64         `json:"price"`
	Image         string          `json:"image"`
	AffiliateLink string          `json:"affiliate_link"`
	Platform      models.Platform `json:"platform"`
	Active        *bool           `json:"active"`
	SalesCopy     string          `json:"sales_copy"`
}

func (req *ProductRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if req.Price < 0 {
		return "price must not be negative"
	}
	return ""
}

func (req *ProductRequest) apply(p *models.Product) {
	p.Title = strings.TrimSpace(req.Title)
	p.Price = req.Price
	p.Image = req.Image
	p.AffiliateLink = req.AffiliateLink
	p.SalesCopy = req.SalesCopy
	if req.Platform != "" {
		p.Platform = req.Platform
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
}

// handleListProducts handles GET /users/{userID}/products
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProductFilter{
		UserID:     chi.URLParam(r, "userID"),
		ActiveOnly: q.Get("active") == "true",
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	products, err := s.deps.Products.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list products", "user_id", filter.UserID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	s.sendJSON(w, http.StatusOK, products)
}

// handleCreateProduct handles POST /users/{userID}/products
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ProductRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		s.sendError(w, http.StatusBadRequest, msg)
		return
	}

	p := &models.Product{UserID: userID, Active: true}
	req.apply(p)
	if err := s.deps.Products.Create(r.Context(), p); err != nil {
		s.logger.Error("failed to create product", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	s.sendJSON(w, http.StatusCreated, p)
}

// handleUpdateProduct handles PUT /users/{userID}/products/{productID}
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		s.sendError(w, http.StatusBadRequest, msg)
		return
	}

	req.apply(p)
	if err := s.deps.Products.Update(r.Context(), p); err != nil {
		s.logger.Error("failed to update product", "product_id", p.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	s.sendJSON(w, http.StatusOK, p)
}

// handleDeleteProduct handles DELETE /users/{userID}/products/{productID}
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}
	if err := s.deps.Products.Delete(r.Context(), p.ID); err != nil {
		s.logger.Error("failed to delete product", "product_id", p.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownedProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	id := chi.URLParam(r, "productID")
	p, err := s.deps.Products.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load product", "product_id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load product")
		return nil, false
	}
	if p == nil || p.UserID != chi.URLParam(r, "userID") {
		s.sendError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	return p, true
}
