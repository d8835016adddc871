package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gbp-politico/backend/internal/auth"
	"github.com/gbp-politico/backend/internal/middleware"
	"github.com/gbp-politico/backend/internal/models"
)

func TestJWTSetsEmpresaAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := auth.NewJWTService("secret", 1)
	user := &models.User{ID: uuid.New(), EmpresaID: uuid.New(), Email: "ana@gbp.com.br", NivelAcesso: models.NivelGerente}
	token, err := jwtSvc.Generate(user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotEmpresa uuid.UUID
	var gotRole string
	r := gin.New()
	r.GET("/x", middleware.JWT(jwtSvc), func(c *gin.Context) {
		gotEmpresa, _ = middleware.EmpresaID(c)
		gotRole = c.GetString(middleware.ContextUserRole)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotEmpresa != user.EmpresaID || gotRole != "gerente" {
		t.Fatalf("unexpected context empresa=%s role=%s", gotEmpresa, gotRole)
	}

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireRoleBlocksComum(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[models.NivelAcesso]int{
		models.NivelAdmin:     http.StatusOK,
		models.NivelGerente:   http.StatusOK,
		models.NivelAtendente: http.StatusOK,
		models.NivelComum:     http.StatusForbidden,
	}
	for role, status := range cases {
		r := gin.New()
		r.GET("/imports",
			func(c *gin.Context) { c.Set(middleware.ContextUserRole, string(role)) },
			middleware.RequireRole(middleware.ImportRoles...),
			func(c *gin.Context) { c.Status(http.StatusOK) },
		)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/imports", nil))
		if w.Code != status {
			t.Fatalf("%s: expected %d, got %d", role, status, w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORS("http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected preflight %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected no CORS header for unknown origin")
	}
}

func TestLoggerLevelsAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(middleware.Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	r.ServeHTTP(w, req)
	if w.Header().Get(middleware.HeaderRequestID) != "req-1" {
		t.Fatalf("expected request id echoed")
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[0].ContextMap()["request_id"] != "req-1" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Fatalf("expected error level for 500, got %s", entries[1].Level)
	}
}
