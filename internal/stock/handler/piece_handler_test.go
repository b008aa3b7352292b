package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/service"
	"github.com/panelworks/panelstock/internal/stock/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupHandlerTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rates := service.StaticRates{
		Labor: decimal.RequireFromString("38.50"),
		CNC:   decimal.RequireFromString("62.00"),
	}
	services := service.NewServices(db, nil, rates, zap.NewNop())

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	NewHandlers(services).RegisterRoutes(api)
	return db, r
}

func TestInboundEndpoint(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-1", 12, 2800, 1300)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": board.ID,
		"width_mm":      2800,
		"height_mm":     1300,
		"quantity":      3,
		"location":      "yard-A",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["quantity"].(float64) != 3 {
		t.Fatalf("expected quantity 3, got %v", data["quantity"])
	}
	if data["area_total_m2"].(float64) != 10.92 {
		t.Fatalf("expected derived area 10.92, got %v", data["area_total_m2"])
	}
}

func TestInboundRequiresAuth(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-2", 12, 2800, 1300)

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": board.ID, "width_mm": 2800, "height_mm": 1300, "quantity": 1,
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestInboundValidation(t *testing.T) {
	_, r := setupHandlerTest(t)
	token := testutil.DefaultTestToken()

	// quantity 缺失
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": "x", "width_mm": 2800, "height_mm": 1300,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40000 {
		t.Fatalf("expected code 40000, got %v", resp["code"])
	}
}

func TestReserveFlowOverHTTP(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-3", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-API-1")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": board.ID, "width_mm": 2800, "height_mm": 1300,
		"quantity": 3, "location": "yard-A",
	}, token)
	pieceID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/reserve", map[string]interface{}{
		"piece_id":        pieceID,
		"project_id":      project.ID,
		"product_line_id": line.ID,
		"quantity":        1,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve failed: %d %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	consumptions := data["consumptions"].([]interface{})
	if len(consumptions) != 1 {
		t.Fatalf("expected one consumption link, got %d", len(consumptions))
	}
	linkID := consumptions[0].(map[string]interface{})["id"].(string)

	// 预留后的公司口径
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/boards/totals?board_id="+board.ID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("totals failed: %d", w.Code)
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	row := items[0].(map[string]interface{})
	if row["available_qty"].(float64) != 2 {
		t.Fatalf("expected 2 available after reserve, got %v", row["available_qty"])
	}

	// 耗用再到重复耗用
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/piece-consumptions/"+linkID+"/consume", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("consume failed: %d %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/piece-consumptions/"+linkID+"/consume", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("double consume must return 409, got %d", w.Code)
	}
	if code := testutil.ParseResponse(w)["code"].(float64); code != 40902 {
		t.Fatalf("expected code 40902, got %v", code)
	}
}

func TestReserveInsufficientStockOverHTTP(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-4", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-API-2")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": board.ID, "width_mm": 2800, "height_mm": 1300,
		"quantity": 1, "location": "yard-A",
	}, token)
	pieceID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/reserve", map[string]interface{}{
		"piece_id":        pieceID,
		"project_id":      project.ID,
		"product_line_id": line.ID,
		"quantity":        5,
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if code := testutil.ParseResponse(w)["code"].(float64); code != 40901 {
		t.Fatalf("expected code 40901, got %v", code)
	}
}

func TestAllocationOverflowOverHTTP(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-5", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-API-3")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/consumptions", map[string]interface{}{
		"project_id":    project.ID,
		"board_type_id": board.ID,
		"mode":          entity.ConsumptionModeReserved,
		"qty_m2":        5.0,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create consumption failed: %d %s", w.Code, w.Body.String())
	}
	consumptionID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, http.MethodPut,
		fmt.Sprintf("/api/v1/consumptions/%s/allocations", consumptionID),
		map[string]interface{}{
			"allocations": []map[string]interface{}{
				{"product_line_id": line.ID, "qty_m2": 5.5},
			},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overflow, got %d: %s", w.Code, w.Body.String())
	}
	if code := testutil.ParseResponse(w)["code"].(float64); code != 40010 {
		t.Fatalf("expected code 40010, got %v", code)
	}
}

func TestPieceNotFoundOverHTTP(t *testing.T) {
	_, r := setupHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodGet,
		"/api/v1/pieces/00000000-0000-0000-0000-000000000000", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// project 范围检索没带 project_id 直接拒绝，不落到数据库
func TestSearchProjectScopeRequiresProject(t *testing.T) {
	_, r := setupHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/pieces/search?q=HPL&scope=project", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for project scope without project_id, got %d", w.Code)
	}

	// 其它范围不要求 project_id
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/pieces/search?q=HPL&scope=stock", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("stock scope search failed: %d", w.Code)
	}
}

func TestOffcutReportOverHTTP(t *testing.T) {
	db, r := setupHandlerTest(t)
	board := testutil.SeedBoard(t, db, "HPL-API-6", 12, 2800, 1300)
	token := testutil.DefaultTestToken()

	testutil.DoRequest(r, http.MethodPost, "/api/v1/pieces/inbound", map[string]interface{}{
		"board_type_id": board.ID, "shape": entity.PieceShapeOffcut,
		"width_mm": 1400, "height_mm": 1300, "quantity": 1, "location": "yard-A",
	}, token)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/reports/offcuts", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("offcut report failed: %d", w.Code)
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 offcut row, got %d", len(items))
	}
	row := items[0].(map[string]interface{})
	if row["ratio"].(float64) != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", row["ratio"])
	}
}
