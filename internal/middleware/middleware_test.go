package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func checkoutEngine(rdb *rd.Client, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/orders", CheckoutRateLimit(rdb, limit, time.Minute, nil), func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
		}
		// body 仍可被后续 handler 读取
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, body.Email)
	})
	return r
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCheckoutRateLimitByEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := checkoutEngine(rdb, 2)

	for i := 0; i < 2; i++ {
		w := postJSON(r, `{"email":"A@x.com"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "A@x.com", w.Body.String())
	}
	w := postJSON(r, `{"email":" a@x.com "}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其他邮箱不受影响
	w = postJSON(r, `{"email":"b@x.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := checkoutEngine(rdb, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, postJSON(r, `{"email":"a@x.com"}`).Code)
	}
}

func TestCheckoutRateLimitDisabledWithoutRedis(t *testing.T) {
	r := checkoutEngine(nil, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, postJSON(r, `{"email":"a@x.com"}`).Code)
	}
}

func identityEngine(secret string) *gin.Engine {
	r := gin.New()
	r.Use(Identity(secret, nil))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.Email)
	})
	r.GET("/me", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityFromBearerAndCookie(t *testing.T) {
	r := identityEngine("k")
	user, err := auth.Sign("k", auth.Identity{ID: "u1", Email: "u@x.com"}, time.Hour)
	require.NoError(t, err)
	admin, err := auth.Sign("k", auth.Identity{ID: "a1", Email: "admin@x.com", IsAdmin: true}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "anonymous", get(r, "/whoami", nil).Body.String())
	assert.Equal(t, "anonymous", get(r, "/whoami", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer garbage")
	}).Body.String())

	assert.Equal(t, "u@x.com", get(r, "/whoami", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+user)
	}).Body.String())
	assert.Equal(t, "admin@x.com", get(r, "/whoami", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: admin})
	}).Body.String())

	bearer := func(tok string) func(*http.Request) {
		return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+tok) }
	}
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/me", bearer(user)).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", nil).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", bearer(user)).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin", bearer(admin)).Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(nil), Recovery(nil))
	r.GET("/boom", func(*gin.Context) { panic("boom") })
	assert.Equal(t, http.StatusInternalServerError, get(r, "/boom", nil).Code)
}
