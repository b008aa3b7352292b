package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/testutil"
	"gorm.io/gorm"
)

func setupPieceRepoTest(t *testing.T) (*gorm.DB, *PieceRepository, *entity.BoardType) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	board := testutil.SeedBoard(t, db, "HPL-100", 12, 2800, 1300)
	return db, NewPieceRepository(db), board
}

func seedPiece(t *testing.T, db *gorm.DB, board *entity.BoardType, qty int) *entity.StockPiece {
	t.Helper()
	piece := &entity.StockPiece{
		BoardTypeID:       board.ID,
		Shape:             entity.PieceShapeFull,
		Status:            entity.PieceStatusAvailable,
		WidthMM:           2800,
		HeightMM:          1300,
		Quantity:          qty,
		Location:          "yard-A",
		AccountingVisible: true,
	}
	if err := db.Create(piece).Error; err != nil {
		t.Fatalf("Failed to seed piece: %v", err)
	}
	return piece
}

func TestFindIdenticalMatchesDedupKey(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 3)

	found, err := repo.FindIdentical(ctx, piece.Key(), "")
	if err != nil {
		t.Fatalf("FindIdentical: %v", err)
	}
	if found.ID != piece.ID {
		t.Fatalf("expected piece %s, got %s", piece.ID, found.ID)
	}

	// 不同状态不命中
	key := piece.Key()
	key.Status = entity.PieceStatusReserved
	if _, err := repo.FindIdentical(ctx, key, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for different status, got %v", err)
	}

	// 排除自身后不命中
	if _, err := repo.FindIdentical(ctx, piece.Key(), piece.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound with excludeID, got %v", err)
	}
}

func TestIncrementQuantityNeverGoesNegative(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 2)

	if err := repo.IncrementQuantity(ctx, piece.ID, -3); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// 拒绝后数量原样保留
	after, err := repo.GetByID(ctx, piece.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Quantity != 2 {
		t.Fatalf("quantity changed after rejected decrement: %d", after.Quantity)
	}

	if err := repo.IncrementQuantity(ctx, piece.ID, -2); err != nil {
		t.Fatalf("decrement to zero should succeed: %v", err)
	}
	after, _ = repo.GetByID(ctx, piece.ID)
	if after.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", after.Quantity)
	}

	if err := repo.IncrementQuantity(ctx, "00000000-0000-0000-0000-000000000000", -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing piece, got %v", err)
	}
}

func TestAreaIsAlwaysDerived(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 3)

	for _, delta := range []int{2, -1, -4, 5} {
		repo.IncrementQuantity(ctx, piece.ID, delta)
		got, err := repo.GetByID(ctx, piece.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		want := float64(got.WidthMM) * float64(got.HeightMM) / 1e6 * float64(got.Quantity)
		if math.Abs(got.AreaTotalM2-want) > 1e-9 {
			t.Fatalf("area_total %f, want %f at qty %d", got.AreaTotalM2, want, got.Quantity)
		}
	}
}

func TestAppendNoteIsAppendOnly(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 1)

	if err := repo.AppendNote(ctx, piece.ID, "first line"); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if err := repo.AppendNote(ctx, piece.ID, "second line"); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}

	after, _ := repo.GetByID(ctx, piece.ID)
	if !strings.Contains(after.Notes, "first line") || !strings.Contains(after.Notes, "second line") {
		t.Fatalf("notes lost content: %q", after.Notes)
	}
	if !strings.HasPrefix(after.Notes, "first line") {
		t.Fatalf("notes reordered: %q", after.Notes)
	}
}

func TestUpdateFieldsOnlyTouchesAllowedColumns(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 4)

	err := repo.UpdateFields(ctx, piece.ID, map[string]interface{}{
		"location": "yard-B",
		"quantity": 999, // 不在白名单里，必须被忽略
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	after, _ := repo.GetByID(ctx, piece.ID)
	if after.Location != "yard-B" {
		t.Fatalf("location not updated: %q", after.Location)
	}
	if after.Quantity != 4 {
		t.Fatalf("quantity must not be updatable via UpdateFields, got %d", after.Quantity)
	}
}

func TestSetQuantity(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	piece := seedPiece(t, db, board, 3)

	if err := repo.SetQuantity(ctx, piece.ID, 7); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	after, _ := repo.GetByID(ctx, piece.ID)
	if after.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", after.Quantity)
	}

	if err := repo.SetQuantity(ctx, piece.ID, -1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for negative quantity, got %v", err)
	}
	after, _ = repo.GetByID(ctx, piece.ID)
	if after.Quantity != 7 {
		t.Fatalf("quantity changed after rejected set: %d", after.Quantity)
	}

	if err := repo.SetQuantity(ctx, "00000000-0000-0000-0000-000000000000", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing piece, got %v", err)
	}
}

// 去重键由唯一索引兜底：合并探测漏掉时第二行插不进去
func TestDuplicateDedupKeyRejected(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	seedPiece(t, db, board, 3)

	dup := &entity.StockPiece{
		BoardTypeID:       board.ID,
		Shape:             entity.PieceShapeFull,
		Status:            entity.PieceStatusAvailable,
		WidthMM:           2800,
		HeightMM:          1300,
		Quantity:          1,
		Location:          "yard-A",
		AccountingVisible: true,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey for identical dedup key, got %v", err)
	}

	// 任一键字段不同就能再建一行
	other := &entity.StockPiece{
		BoardTypeID:       board.ID,
		Shape:             entity.PieceShapeFull,
		Status:            entity.PieceStatusAvailable,
		WidthMM:           2800,
		HeightMM:          1300,
		Quantity:          1,
		Location:          "yard-B",
		AccountingVisible: true,
	}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create with different location: %v", err)
	}
}

func TestForProjectUsesStructuredLinkOnly(t *testing.T) {
	db, repo, board := setupPieceRepoTest(t)
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, db, "PRJ-001")

	tagged := seedPiece(t, db, board, 1)
	if err := repo.UpdateFields(ctx, tagged.ID, map[string]interface{}{"project_id": project.ID}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	// 备注里提到项目但没有结构化关联的行不算
	loose := seedPiece(t, db, board, 1)
	repo.AppendNote(ctx, loose.ID, "moved for project "+project.Code)

	pieces, err := repo.ForProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("ForProject: %v", err)
	}
	if len(pieces) != 1 || pieces[0].ID != tagged.ID {
		t.Fatalf("expected only the tagged piece, got %d rows", len(pieces))
	}
}
