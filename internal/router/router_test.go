package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/inventory"
	"storefront/internal/observability"
	"storefront/internal/order"
	"storefront/internal/store/storetest"
)

const secret = "test-secret"

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	admin  string
	user   string
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storetest.Open(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	registry := catalog.NewRegistry(db)
	inv := inventory.NewStore(db, nil, metrics)
	orders := order.NewService(order.Deps{
		DB:        db,
		Products:  registry,
		Allocator: inv,
		Items:     inv,
		Metrics:   metrics,
	})

	r := gin.New()
	Setup(r, Deps{
		Catalog:   registry,
		Inventory: inv,
		Orders:    orders,
		Gatherer:  reg,
		Config: config.AppConfig{
			AuthSecret:         secret,
			CheckoutRateLimit:  100,
			CheckoutRateWindow: time.Minute,
		},
	})

	admin, err := auth.Sign(secret, auth.Identity{ID: "admin-1", Email: "admin@store.test", IsAdmin: true}, time.Hour)
	require.NoError(t, err)
	user, err := auth.Sign(secret, auth.Identity{ID: "user-1", Email: "buyer@example.com"}, time.Hour)
	require.NoError(t, err)
	return &testServer{engine: r, admin: admin, user: user}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type productResp struct {
	ID       uint   `json:"id"`
	Slug     string `json:"slug"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Stock    int64  `json:"stock"`
}

type itemResp struct {
	ID      uint    `json:"id"`
	Value   string  `json:"value"`
	Note    *string `json:"note"`
	IsUsed  bool    `json:"is_used"`
	OrderID *string `json:"order_id"`
}

type orderResp struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Amount int64      `json:"amount"`
	UserID *string    `json:"user_id"`
	Items  []itemResp `json:"items"`
}

func (s *testServer) seedProduct(t *testing.T, slug string) productResp {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/admin/products", s.admin, gin.H{
		"slug": slug, "name": "Netflix Premium", "price": 50000, "currency": "IDR", "featured": true,
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	return decode[productResp](t, env.Data)
}

func TestPurchaseFlow(t *testing.T) {
	s := newServer(t)
	p := s.seedProduct(t, "netflix")

	code, env := s.do(t, http.MethodPost, "/api/admin/items/bulk", s.admin, gin.H{
		"product_id": p.ID, "type": "ACCOUNT", "raw_text": "a@x.com;pw1;note1\n\n  b@x.com;pw2  \n;bad\n",
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, 2, decode[map[string]int](t, env.Data)["created"])

	code, env = s.do(t, http.MethodGet, "/api/products/netflix", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), decode[productResp](t, env.Data).Stock)

	code, env = s.do(t, http.MethodPost, "/api/orders", s.user, gin.H{
		"product_slug": "netflix", "email": " Buyer@Example.com ", "payment_method": "alipay",
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	o := decode[orderResp](t, env.Data)
	assert.Equal(t, "PENDING", o.Status)
	assert.Equal(t, int64(50000), o.Amount)
	require.NotNil(t, o.UserID)
	assert.Equal(t, "user-1", *o.UserID)

	code, env = s.do(t, http.MethodGet, "/api/orders/"+o.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[orderResp](t, env.Data).Items)

	code, env = s.do(t, http.MethodPost, "/api/payment/mock", s.admin, gin.H{"order_id": o.ID, "status": "paid"})
	require.Equal(t, http.StatusOK, code, env.Msg)

	code, env = s.do(t, http.MethodGet, "/api/orders/"+o.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	paid := decode[orderResp](t, env.Data)
	assert.Equal(t, "PAID", paid.Status)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, "a@x.com", paid.Items[0].Value)
	assert.True(t, paid.Items[0].IsUsed)

	// 重复回调不会再认领
	code, _ = s.do(t, http.MethodPost, "/api/admin/orders/"+o.ID+"/status", s.admin, gin.H{"status": "PAID"})
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/api/products/netflix", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), decode[productResp](t, env.Data).Stock)

	code, _ = s.do(t, http.MethodPost, "/api/admin/orders/"+o.ID+"/status", s.admin, gin.H{"status": "FAILED"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodGet, "/api/account/orders", s.user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]orderResp](t, env.Data), 1)
}

func TestUnfulfilledAndFulfill(t *testing.T) {
	s := newServer(t)
	p := s.seedProduct(t, "spotify")

	code, env := s.do(t, http.MethodPost, "/api/orders", "", gin.H{"product_slug": "spotify", "email": "c@x.com"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	o := decode[orderResp](t, env.Data)

	code, _ = s.do(t, http.MethodPost, "/api/admin/orders/"+o.ID+"/status", s.admin, gin.H{"status": "PAID"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/api/admin/orders/unfulfilled", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, decode[[]orderResp](t, env.Data), 1)

	code, _ = s.do(t, http.MethodPost, "/api/admin/items", s.admin, gin.H{"product_id": p.ID, "type": "CODE", "value": "CODE-1"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPost, "/api/admin/orders/"+o.ID+"/fulfill", s.admin, nil)
	require.Equal(t, http.StatusOK, code, env.Msg)
	require.Len(t, decode[orderResp](t, env.Data).Items, 1)

	code, env = s.do(t, http.MethodGet, "/api/admin/orders/unfulfilled", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]orderResp](t, env.Data))
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	s.seedProduct(t, "netflix")

	code, _ := s.do(t, http.MethodPost, "/api/orders", "", gin.H{"product_slug": "missing", "email": "a@x.com"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/orders", "", gin.H{"product_slug": "netflix", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/orders/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/payment/mock", s.admin, gin.H{"order_id": "x", "status": "SHIPPED"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/products", s.admin, gin.H{"slug": "netflix", "name": "dup", "price": 1})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/items/bulk", s.admin, gin.H{"product_id": 999, "type": "CODE", "raw_text": "X"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPatch, "/api/admin/items/abc", s.admin, gin.H{"value": "v"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newServer(t)
	code, _ := s.do(t, http.MethodGet, "/api/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/admin/orders", s.user, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodPost, "/api/payment/mock", s.user, gin.H{"order_id": "x", "status": "PAID"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/account/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/admin/orders", s.admin, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestBulkImportXLSXUpload(t *testing.T) {
	s := newServer(t)
	p := s.seedProduct(t, "netflix")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"CODE-1", "valid until\nDecember"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"CODE-2"}))
	var xlsx bytes.Buffer
	require.NoError(t, f.Write(&xlsx))
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("product_id", itoa(p.ID)))
	require.NoError(t, mw.WriteField("type", "code"))
	fw, err := mw.CreateFormFile("file", "codes.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/items/bulk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.admin)
	code, env := s.serve(t, req)
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, 2, decode[map[string]int](t, env.Data)["created"])

	code, env = s.do(t, http.MethodGet, "/api/admin/items?product_id="+itoa(p.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	items := decode[[]itemResp](t, env.Data)
	require.Len(t, items, 2)
}

// paidOrder 下单并标记 PAID；无库存时订单停在 PAID 且没有条目。
func (s *testServer) paidOrder(t *testing.T, slug string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/orders", "", gin.H{"product_slug": slug, "email": "buyer@example.com"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	id := decode[orderResp](t, env.Data).ID
	code, env = s.do(t, http.MethodPost, "/api/payment/mock", s.admin, gin.H{"order_id": id, "status": "PAID"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	return id
}

func TestItemAdminOperations(t *testing.T) {
	s := newServer(t)
	p := s.seedProduct(t, "netflix")
	first := s.paidOrder(t, "netflix")
	second := s.paidOrder(t, "netflix")

	code, env := s.do(t, http.MethodPost, "/api/admin/items", s.admin, gin.H{"product_id": p.ID, "type": "CODE", "value": "C1"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	item := decode[itemResp](t, env.Data)

	code, env = s.do(t, http.MethodPatch, "/api/admin/items/"+itoa(item.ID), s.admin, gin.H{"value": "C1-fixed", "note": "n"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, "C1-fixed", decode[itemResp](t, env.Data).Value)

	code, env = s.do(t, http.MethodPost, "/api/admin/items/claim", s.admin, gin.H{"product_id": p.ID, "order_id": first})
	require.Equal(t, http.StatusOK, code, env.Msg)
	claimed := decode[map[string]*itemResp](t, env.Data)["item"]
	require.NotNil(t, claimed)
	require.NotNil(t, claimed.OrderID)
	assert.Equal(t, first, *claimed.OrderID)

	code, env = s.do(t, http.MethodPost, "/api/admin/items/claim", s.admin, gin.H{"product_id": p.ID, "order_id": second})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decode[map[string]*itemResp](t, env.Data)["item"])

	code, env = s.do(t, http.MethodPost, "/api/admin/items/"+itoa(item.ID)+"/used", s.admin, gin.H{"used": false})
	require.Equal(t, http.StatusOK, code, env.Msg)
	reset := decode[itemResp](t, env.Data)
	assert.False(t, reset.IsUsed)
	assert.Nil(t, reset.OrderID)

	code, _ = s.do(t, http.MethodPost, "/api/admin/items/"+itoa(item.ID)+"/used", s.admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, "/api/admin/items/"+itoa(item.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/admin/items/"+itoa(item.ID), s.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClaimRejectsUnrelatedOrders(t *testing.T) {
	s := newServer(t)
	s.seedProduct(t, "netflix")
	code, env := s.do(t, http.MethodPost, "/api/admin/products", s.admin, gin.H{
		"slug": "spotify", "name": "Spotify", "price": 30000, "currency": "IDR",
	})
	require.Equal(t, http.StatusOK, code, env.Msg)
	b := decode[productResp](t, env.Data)

	orderForA := s.paidOrder(t, "netflix")
	code, env = s.do(t, http.MethodPost, "/api/admin/items/bulk", s.admin, gin.H{"product_id": b.ID, "type": "CODE", "raw_text": "S1"})
	require.Equal(t, http.StatusOK, code, env.Msg)

	code, _ = s.do(t, http.MethodPost, "/api/admin/items/claim", s.admin, gin.H{"product_id": b.ID, "order_id": "nonexistent"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/items/claim", s.admin, gin.H{"product_id": b.ID, "order_id": orderForA})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/orders", "", gin.H{"product_slug": "spotify", "email": "buyer@example.com"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	pending := decode[orderResp](t, env.Data).ID
	code, _ = s.do(t, http.MethodPost, "/api/admin/items/claim", s.admin, gin.H{"product_id": b.ID, "order_id": pending})
	assert.Equal(t, http.StatusConflict, code)

	// 库存没有被动过
	code, env = s.do(t, http.MethodGet, "/api/products/spotify", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), decode[productResp](t, env.Data).Stock)

	code, env = s.do(t, http.MethodGet, "/api/admin/orders/unfulfilled", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	unfulfilled := decode[[]orderResp](t, env.Data)
	require.Len(t, unfulfilled, 1)
	assert.Equal(t, orderForA, unfulfilled[0].ID)
}

func TestPublicCatalogAndMetrics(t *testing.T) {
	s := newServer(t)
	p := s.seedProduct(t, "netflix")

	code, env := s.do(t, http.MethodGet, "/api/products/featured", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]productResp](t, env.Data), 1)

	code, env = s.do(t, http.MethodPatch, "/api/admin/products/"+itoa(p.ID), s.admin, gin.H{"price": 60000})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, int64(60000), decode[productResp](t, env.Data).Price)

	code, env = s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]productResp](t, env.Data), 1)

	code, _ = s.do(t, http.MethodDelete, "/api/admin/products/"+itoa(p.ID), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/products/netflix", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	code, _ = s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
