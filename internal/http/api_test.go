package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"catalog-api/internal/auth"
	"catalog-api/internal/repository/sqlite"
	"catalog-api/internal/service"
	"catalog-api/internal/storage"
)

type fakeStorage struct {
	uploads map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: map[string][]byte{}}
}

func (f *fakeStorage) UploadObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads[key] = data
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	delete(f.uploads, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	for key, data := range f.uploads {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return objects, nil
}

func (f *fakeStorage) GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://example.com/%s/%s", bucket, key), nil
}

type testEnv struct {
	router  *gin.Engine
	db      *sql.DB
	secret  []byte
	storage *fakeStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	productRepo := sqlite.NewProductRepository(db)
	if err := userRepo.Init(context.Background()); err != nil {
		t.Fatalf("init user repository: %v", err)
	}
	if err := productRepo.Init(context.Background()); err != nil {
		t.Fatalf("init product repository: %v", err)
	}

	secret := []byte("test-secret")
	tokenCfg := auth.TokenConfig{Secret: secret, TTL: time.Hour}
	issuer, err := auth.NewTokenIssuer(tokenCfg)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	verifier, err := auth.NewTokenVerifier(tokenCfg)
	if err != nil {
		t.Fatalf("NewTokenVerifier error: %v", err)
	}

	users := service.NewUserService(userRepo, auth.NewBcryptHasher(bcrypt.MinCost), issuer)
	products := service.NewProductService(productRepo)
	store := newFakeStorage()

	handler := NewHandler(users, products, verifier, store, "test-bucket", "catalog-images", nil)
	router := gin.New()
	handler.RegisterRoutes(router)

	// test-only echo of the resolved identity behind the same gate
	router.GET("/api/whoami", handler.requireAuth(), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "name": user.Name, "email": user.Email})
	})

	return &testEnv{router: router, db: db, secret: secret, storage: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) registerAndLogin(t *testing.T, name, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": name, "email": email, "password": password})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("login response missing token: %s", rec.Body.String())
	}
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ana", "email": "ana@x.com", "password": "secret1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if strings.Contains(strings.ToLower(rec.Body.String()), "hash") {
		t.Fatalf("register response must not leak the password hash: %s", rec.Body.String())
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "ana@x.com" || user["name"] != "Ana" {
		t.Fatalf("unexpected user in register response: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "ana@x.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("login response missing token")
	}

	rec = env.do(t, http.MethodGet, "/api/whoami", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("whoami: got %d body %s", rec.Code, rec.Body.String())
	}
	who := decodeBody(t, rec)
	if who["name"] != "Ana" || who["email"] != "ana@x.com" {
		t.Fatalf("gate resolved the wrong identity: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "ana@x.com", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d want 401", rec.Code)
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "", "email": "ana@x.com", "password": "secret1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: got %d want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Ana", "email": "ana@x.com", "password": "secret1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/auth/register", "", gin.H{"name": "Other", "email": "ana@x.com", "password": "secret2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email: got %d want 409, body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginFailureShapesMatch(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "Ana", "ana@x.com", "secret1")

	wrongPassword := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "ana@x.com", "password": "nope"})
	unknownEmail := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "ghost@x.com", "password": "secret1"})

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("both failures must be 401: %d / %d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("failure bodies must be identical: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestGateRejections(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "Ana", "ana@x.com", "secret1")

	// no header
	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: got %d want 401", rec.Code)
	}

	// wrong scheme
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: got %d want 401", rec.Code)
	}

	// garbage token
	rec = env.do(t, http.MethodGet, "/api/products", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d want 401", rec.Code)
	}

	// expired but validly signed token
	expiredIssuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: env.secret, TTL: -time.Minute})
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	expired, err := expiredIssuer.Issue(1)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/api/products", expired, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: got %d want 401", rec.Code)
	}

	// valid token for a since-deleted account
	if _, err := env.db.Exec(`DELETE FROM users`); err != nil {
		t.Fatalf("delete users: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/api/products", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("deleted subject: got %d want 403, body %s", rec.Code, rec.Body.String())
	}
}

func TestProductCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "Ana", "ana@x.com", "secret1")

	rec := env.do(t, http.MethodPost, "/api/products", token, gin.H{
		"name":        "Mug",
		"description": "ceramic",
		"value":       9.5,
		"quantity":    3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	id := int64(created["id"].(float64))
	if id == 0 {
		t.Fatalf("create response missing id: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list: expected one product, body %s", rec.Body.String())
	}

	// explicit zero quantity applies, omitted fields keep their values
	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d", id), token, gin.H{"quantity": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody(t, rec)
	if updated["quantity"].(float64) != 0 {
		t.Fatalf("explicit zero quantity not applied: %s", rec.Body.String())
	}
	if updated["name"] != "Mug" || updated["description"] != "ceramic" {
		t.Fatalf("omitted fields must keep their values: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", id), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", id), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d want 404", rec.Code)
	}
}

func TestUploadProductImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "Ana", "ana@x.com", "secret1")

	rec := env.do(t, http.MethodPost, "/api/products", token, gin.H{"name": "Mug"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rec.Code, rec.Body.String())
	}
	id := int64(decodeBody(t, rec)["id"].(float64))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "mug.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-png-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/products/%d/image", id), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)

	if out.Code != http.StatusOK {
		t.Fatalf("upload: got %d body %s", out.Code, out.Body.String())
	}
	image, _ := decodeBody(t, out)["image"].(string)
	if !strings.HasPrefix(image, "s3://test-bucket/catalog-images/") {
		t.Fatalf("unexpected image location: %q", image)
	}
	if len(env.storage.uploads) != 1 {
		t.Fatalf("expected one stored object, have %d", len(env.storage.uploads))
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: got %d", rec.Code)
	}
}
