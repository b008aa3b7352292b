package service

import (
	"context"
	"errors"
	"testing"

	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/panelworks/panelstock/internal/stock/testutil"
	"github.com/shopspring/decimal"
)

func TestBoardCRUD(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	board, err := svc.Board.Create(ctx, BoardRequest{
		Code:        "FEN-12-9310",
		Name:        "Fenix NTM 9310",
		Brand:       "Fenix",
		ThicknessMM: 12,
		StdWidthMM:  2800,
		StdHeightMM: 1300,
		SalePrice:   decimal.RequireFromString("145.00"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !board.HasStandardSize() {
		t.Fatal("expected standard size")
	}

	updated, err := svc.Board.Update(ctx, board.ID, BoardRequest{
		Code:        "FEN-12-9310",
		Name:        "Fenix NTM Nero 9310",
		Brand:       "Fenix",
		ThicknessMM: 12,
		StdWidthMM:  2800,
		StdHeightMM: 1300,
		SalePrice:   decimal.RequireFromString("150.00"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Fenix NTM Nero 9310" {
		t.Fatalf("name not updated: %q", updated.Name)
	}

	boards, total, err := svc.Board.List(ctx, repository.BoardListParams{Keyword: "Fenix"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(boards) != 1 {
		t.Fatalf("expected 1 board, got %d", total)
	}

	if err := svc.Board.Delete(ctx, board.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Board.Get(ctx, board.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

// 有在库板件的型号不允许删除
func TestBoardDeleteRefusedWithStock(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-DEL", 12, 2800, 1300)

	if _, err := svc.Piece.Inbound(ctx, InboundRequest{
		BoardTypeID: board.ID, WidthMM: 2800, HeightMM: 1300, Quantity: 1, Location: "yard-A",
	}, testUser); err != nil {
		t.Fatalf("Inbound: %v", err)
	}

	if err := svc.Board.Delete(ctx, board.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
