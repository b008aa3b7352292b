package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/testutil"
	"gorm.io/gorm"
)

func seedLine(t *testing.T, db *gorm.DB, projectID, name string, pos int) *entity.ProductLine {
	t.Helper()
	line := &entity.ProductLine{ProjectID: projectID, Name: name, Position: pos}
	if err := db.Create(line).Error; err != nil {
		t.Fatalf("Failed to seed product line: %v", err)
	}
	return line
}

// 台账条目不触碰板件行，板件预留/耗用是独立操作
func TestCreateConsumptionDoesNotTouchPieces(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L1", 12, 2800, 1300)
	project, _ := testutil.SeedProject(t, db, "PRJ-200")

	svc.Piece.Inbound(ctx, InboundRequest{
		BoardTypeID: board.ID, WidthMM: 2800, HeightMM: 1300, Quantity: 4, Location: "yard-A",
	}, testUser)

	c, err := svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID:   project.ID,
		BoardTypeID: board.ID,
		Mode:        entity.ConsumptionModeReserved,
		QtyBoards:   1.5,
		QtyM2:       5.0,
	}, testUser)
	if err != nil {
		t.Fatalf("CreateConsumption: %v", err)
	}
	if c.Mode != entity.ConsumptionModeReserved || c.QtyM2 != 5.0 {
		t.Fatalf("unexpected consumption: %+v", c)
	}

	totals, _ := svc.Report.TotalsFor(ctx, board.ID, nil)
	if totals[0].AvailableQty != 4 {
		t.Fatalf("ledger entry must not change stock, got available %d", totals[0].AvailableQty)
	}
}

// 分摊合计超出台账面积被整体拒绝，旧分摊原样保留
func TestReplaceAllocationsRejectsOverflow(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L2", 12, 2800, 1300)
	project, lineA := testutil.SeedProject(t, db, "PRJ-201")
	lineB := seedLine(t, db, project.ID, "Line 2", 2)

	c, err := svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: project.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeReserved, QtyM2: 5.0,
	}, testUser)
	if err != nil {
		t.Fatalf("CreateConsumption: %v", err)
	}

	// 先放一组合法分摊
	initial, err := svc.Consumption.ReplaceAllocations(ctx, c.ID, []AllocationInput{
		{ProductLineID: lineA.ID, QtyM2: 4.0},
	}, testUser)
	if err != nil {
		t.Fatalf("initial ReplaceAllocations: %v", err)
	}
	if len(initial) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(initial))
	}

	// 3.0 + 2.5 > 5.0：整组拒绝
	_, err = svc.Consumption.ReplaceAllocations(ctx, c.ID, []AllocationInput{
		{ProductLineID: lineA.ID, QtyM2: 3.0},
		{ProductLineID: lineB.ID, QtyM2: 2.5},
	}, testUser)
	if !errors.Is(err, ErrAllocationOverflow) {
		t.Fatalf("expected ErrAllocationOverflow, got %v", err)
	}

	// 旧分摊未被破坏
	kept, _ := svc.Consumption.ListAllocations(ctx, c.ID)
	if len(kept) != 1 || math.Abs(kept[0].QtyM2-4.0) > 1e-9 {
		t.Fatalf("old allocations must survive a rejected replace: %+v", kept)
	}

	// 3.0 + 2.0 = 5.0：正好允许
	replaced, err := svc.Consumption.ReplaceAllocations(ctx, c.ID, []AllocationInput{
		{ProductLineID: lineA.ID, QtyM2: 3.0},
		{ProductLineID: lineB.ID, QtyM2: 2.0},
	}, testUser)
	if err != nil {
		t.Fatalf("exact-fit ReplaceAllocations: %v", err)
	}
	if len(replaced) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(replaced))
	}
	total := 0.0
	for _, a := range replaced {
		total += a.QtyM2
	}
	if math.Abs(total-5.0) > 1e-9 {
		t.Fatalf("expected total 5.0, got %f", total)
	}
}

// qty<=0 和不存在的产品行静默丢弃
func TestReplaceAllocationsDropsEmptyRows(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L3", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-202")

	c, _ := svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: project.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeConsumed, QtyM2: 3.0,
	}, testUser)

	result, err := svc.Consumption.ReplaceAllocations(ctx, c.ID, []AllocationInput{
		{ProductLineID: line.ID, QtyM2: 2.0},
		{ProductLineID: line.ID, QtyM2: 0},
		{ProductLineID: "00000000-0000-0000-0000-000000000000", QtyM2: 1.0},
	}, testUser)
	if err != nil {
		t.Fatalf("ReplaceAllocations: %v", err)
	}
	if len(result) != 1 || math.Abs(result[0].QtyM2-2.0) > 1e-9 {
		t.Fatalf("expected only the valid row to survive, got %+v", result)
	}
}

func TestDeleteConsumptionRemovesAllocations(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L4", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-203")

	c, _ := svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: project.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeReserved, QtyM2: 2.0,
	}, testUser)
	svc.Consumption.ReplaceAllocations(ctx, c.ID, []AllocationInput{
		{ProductLineID: line.ID, QtyM2: 1.0},
	}, testUser)

	if err := svc.Consumption.DeleteConsumption(ctx, c.ID, testUser); err != nil {
		t.Fatalf("DeleteConsumption: %v", err)
	}

	var count int64
	db.Model(&entity.ConsumptionAllocation{}).Where("consumption_id = ?", c.ID).Count(&count)
	if count != 0 {
		t.Fatalf("allocations must be deleted with the entry, got %d", count)
	}
}

// 占用 RESERVED -> CONSUMED 只允许一次；板件同步移入 CONSUMED 行
func TestMarkConsumedIsOneWay(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L5", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-204")

	source, _ := svc.Piece.Inbound(ctx, InboundRequest{
		BoardTypeID: board.ID, WidthMM: 2800, HeightMM: 1300, Quantity: 2, Location: "yard-A",
	}, testUser)
	res, err := svc.Piece.Reserve(ctx, ReserveRequest{
		PieceID: source.ID, ProjectID: project.ID, ProductLineID: line.ID, Quantity: 1,
	}, testUser)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	consumed, err := svc.Consumption.MarkConsumed(ctx, res.Consumptions[0].ID, testUser)
	if err != nil {
		t.Fatalf("MarkConsumed: %v", err)
	}
	if consumed.Status != entity.PieceStatusConsumed || consumed.ConsumedAt == nil {
		t.Fatalf("expected CONSUMED with timestamp, got %+v", consumed)
	}
	if consumed.PieceID == nil {
		t.Fatal("link must point to the consumed piece row")
	}
	piece, _ := svc.Piece.GetPiece(ctx, *consumed.PieceID)
	if piece.Status != entity.PieceStatusConsumed || piece.Quantity != 1 {
		t.Fatalf("consumed piece row wrong: %+v", piece)
	}

	// 重复耗用被拒绝
	if _, err := svc.Consumption.MarkConsumed(ctx, res.Consumptions[0].ID, testUser); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second MarkConsumed must fail with ErrInvalidState, got %v", err)
	}

	// 已耗用的占用也不能退回
	if err := svc.Piece.Return(ctx, res.Consumptions[0].ID, testUser); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("returning a consumed link must fail, got %v", err)
	}
}

// REST 来源的占用不指向库存行，耗用时也不动库存
func TestReserveRestAndConsume(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L6", 12, 2800, 1300)
	project, line := testutil.SeedProject(t, db, "PRJ-205")

	link, err := svc.Consumption.ReserveRest(ctx, ReserveRestRequest{
		ProjectID:     project.ID,
		ProductLineID: line.ID,
		BoardTypeID:   board.ID,
		ConsumeMode:   entity.ConsumeModeHalf,
	}, testUser)
	if err != nil {
		t.Fatalf("ReserveRest: %v", err)
	}
	if link.Source != entity.PieceSourceRest || link.PieceID != nil {
		t.Fatalf("rest link wrong: %+v", link)
	}

	consumed, err := svc.Consumption.MarkConsumed(ctx, link.ID, testUser)
	if err != nil {
		t.Fatalf("MarkConsumed: %v", err)
	}
	if consumed.Status != entity.PieceStatusConsumed || consumed.PieceID != nil {
		t.Fatalf("rest consumption must stay detached from stock: %+v", consumed)
	}
}

func TestReserveRestRejectsForeignProductLine(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L7", 12, 2800, 1300)
	_, line := testutil.SeedProject(t, db, "PRJ-206")
	other, _ := testutil.SeedProject(t, db, "PRJ-207")

	_, err := svc.Consumption.ReserveRest(ctx, ReserveRestRequest{
		ProjectID:     other.ID,
		ProductLineID: line.ID,
		BoardTypeID:   board.ID,
	}, testUser)
	if err == nil {
		t.Fatal("expected error for product line of another project")
	}
}

// 其它项目已承诺面积的查询口径：RESERVED 台账、排除本项目
func TestReservedTotalForBoardExcludesOwnProject(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L8", 12, 2800, 1300)
	mine, _ := testutil.SeedProject(t, db, "PRJ-208")
	theirs, _ := testutil.SeedProject(t, db, "PRJ-209")

	svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: mine.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeReserved, QtyM2: 4.0,
	}, testUser)
	svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: theirs.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeReserved, QtyM2: 2.5,
	}, testUser)
	// CONSUMED 不算承诺中
	svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: theirs.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeConsumed, QtyM2: 9.0,
	}, testUser)

	total, err := svc.Consumption.ReservedTotalForBoard(ctx, board.ID, mine.ID)
	if err != nil {
		t.Fatalf("ReservedTotalForBoard: %v", err)
	}
	if math.Abs(total-2.5) > 1e-9 {
		t.Fatalf("expected 2.5 m2 committed elsewhere, got %f", total)
	}
}

// 成本汇总 = 面积 × 型号售价，费率只透传
func TestCostSummary(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	board := testutil.SeedBoard(t, db, "HPL-L9", 12, 2800, 1300)
	db.Model(board).Update("sale_price", "120.50")
	project, _ := testutil.SeedProject(t, db, "PRJ-210")

	svc.Consumption.CreateConsumption(ctx, CreateConsumptionRequest{
		ProjectID: project.ID, BoardTypeID: board.ID,
		Mode: entity.ConsumptionModeConsumed, QtyM2: 2.0,
	}, testUser)

	summary, err := svc.Consumption.CostSummary(ctx, project.ID)
	if err != nil {
		t.Fatalf("CostSummary: %v", err)
	}
	if len(summary.Lines) != 1 {
		t.Fatalf("expected 1 cost line, got %d", len(summary.Lines))
	}
	if summary.MaterialTotal.String() != "241" && summary.MaterialTotal.String() != "241.00" {
		t.Fatalf("expected material total 241.00, got %s", summary.MaterialTotal)
	}
	if summary.LaborRate.String() != "38.5" {
		t.Fatalf("labor rate must pass through, got %s", summary.LaborRate)
	}
	if summary.CNCRate.String() != "62" {
		t.Fatalf("cnc rate must pass through, got %s", summary.CNCRate)
	}
}
