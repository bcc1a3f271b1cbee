package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	closure "fuel-backoffice/internal/closure/domain"
	masterdata "fuel-backoffice/internal/masterdata/domain"
	"fuel-backoffice/internal/units"
)

const volumeEpsilon = 1e-9

func dispenserItem(number int) string { return fmt.Sprintf("dispenser %d", number) }

func hoseItem(dispenser, hose int) string {
	return fmt.Sprintf("dispenser %d hose %d", dispenser, hose)
}

// prevalidate checks that the point of sale exists and that every declared
// dispenser and hose belongs to it. Any miss aborts the closure.
func (s *ShiftClosureService) prevalidate(ctx context.Context, ws *workingSet, req closure.ShiftClosureRequest) stageResult {
	res := stageResult{stage: closure.StagePreValidation}
	invalid := func(item, reason string) {
		res.fail(closure.KindValidation, item, (&closure.ValidationError{Reason: reason}).Error())
		s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeFailed, reason)
	}

	pos, err := s.pointsOfSale.GetPointOfSale(ctx, req.PointOfSaleID)
	switch {
	case err != nil:
		invalid("point of sale "+req.PointOfSaleID, "lookup failed: "+err.Error())
		res.aborted = true
		return res
	case pos == nil:
		invalid("point of sale "+req.PointOfSaleID, "unknown point of sale")
		res.aborted = true
		return res
	case !pos.Active:
		invalid("point of sale "+req.PointOfSaleID, "point of sale is inactive")
		res.aborted = true
		return res
	}

	found := make([]*masterdata.Dispenser, len(req.Dispensers))
	lookupErrs := make([]error, len(req.Dispensers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupConcurrency)
	for i, reading := range req.Dispensers {
		i, reading := i, reading
		g.Go(func() error {
			found[i], lookupErrs[i] = s.dispensers.GetDispenser(gctx, req.PointOfSaleID, reading.DispenserNumber)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[int]struct{}, len(req.Dispensers))
	for i, reading := range req.Dispensers {
		item := dispenserItem(reading.DispenserNumber)
		if _, dup := seen[reading.DispenserNumber]; dup {
			invalid(item, "declared more than once")
			continue
		}
		seen[reading.DispenserNumber] = struct{}{}

		dispenser := found[i]
		switch {
		case lookupErrs[i] != nil:
			invalid(item, "lookup failed: "+lookupErrs[i].Error())
			continue
		case dispenser == nil:
			invalid(item, "not found at point of sale "+req.PointOfSaleID)
			continue
		case dispenser.PointOfSaleID != req.PointOfSaleID:
			invalid(item, "belongs to point of sale "+dispenser.PointOfSaleID)
			continue
		}

		hoses := make(map[int]struct{}, len(reading.Hoses))
		for _, hose := range reading.Hoses {
			hItem := hoseItem(reading.DispenserNumber, hose.HoseNumber)
			if _, dup := hoses[hose.HoseNumber]; dup {
				invalid(hItem, "declared more than once")
				continue
			}
			hoses[hose.HoseNumber] = struct{}{}
			if _, ok := dispenser.Hose(hose.HoseNumber); !ok {
				invalid(hItem, "hose not found")
			}
		}
		ws.dispensers[reading.DispenserNumber] = dispenser.Clone()
	}

	if len(res.issues) > 0 {
		res.aborted = true
	}
	return res
}

func (s *ShiftClosureService) processDispensers(ctx context.Context, ws *workingSet, req closure.ShiftClosureRequest) stageResult {
	res := stageResult{stage: closure.StageDispensers, totals: zeroTotals()}
	for _, reading := range req.Dispensers {
		dispenser := ws.dispensers[reading.DispenserNumber]
		summary := closure.DispenserSummary{
			DispenserNumber: reading.DispenserNumber,
			Value:           decimal.Zero,
			Hoses:           make([]closure.HoseSummary, 0, len(reading.Hoses)),
		}
		var liters float64
		for _, hoseReading := range reading.Hoses {
			hose, totals := s.processHose(ctx, ws, &res, dispenser, reading.DispenserNumber, hoseReading)
			summary.Hoses = append(summary.Hoses, hose)
			summary.Value = summary.Value.Add(totals.Value)
			liters += totals.Liters
			res.totals = res.totals.Add(totals)
		}
		summary.SoldLiters = units.Round2(liters)
		summary.SoldGallons = units.Round2(liters / units.LitersPerUSGallon)
		res.dispensers = append(res.dispensers, summary)
	}
	return res
}

// processHose handles one meter pair. Item errors stay inside the summary and
// the stage issues; the returned totals are zero unless the sale went through.
func (s *ShiftClosureService) processHose(ctx context.Context, ws *workingSet, res *stageResult, dispenser *masterdata.Dispenser, dispenserNumber int, reading closure.HoseReading) (closure.HoseSummary, closure.Totals) {
	item := hoseItem(dispenserNumber, reading.HoseNumber)
	summary := closure.HoseSummary{
		HoseNumber:      reading.HoseNumber,
		ProductCode:     reading.ProductCode,
		PreviousReading: reading.PreviousReading,
		CurrentReading:  reading.CurrentReading,
		Unit:            reading.Unit,
		PricePerLiter:   decimal.Zero,
		PricePerGallon:  decimal.Zero,
		Value:           decimal.Zero,
		Outcome:         closure.OutcomeFailed,
	}
	fail := func(reason string, err error) (closure.HoseSummary, closure.Totals) {
		itemErr := &closure.ItemProcessingError{Stage: res.stage, Item: item, Reason: reason, Err: err}
		res.fail(closure.KindItem, item, strings.TrimPrefix(itemErr.Error(), item+": "))
		summary.Error = itemErr.Error()
		s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeFailed, summary.Error)
		return summary, zeroTotals()
	}

	hose, _ := dispenser.Hose(reading.HoseNumber)
	if hose.ProductCode != "" && !masterdata.SameCode(hose.ProductCode, reading.ProductCode) {
		res.warn(item, fmt.Sprintf("hose is configured for product %s, reading declares %s", hose.ProductCode, reading.ProductCode))
	}

	// The stored meter is the start of the next sellable delta. Anything below
	// it was committed by an earlier closure.
	if reading.PreviousReading < hose.CurrentReading-volumeEpsilon {
		return fail(fmt.Sprintf("declared previous reading %s below stored meter %s, delta already closed",
			formatReading(reading.PreviousReading), formatReading(hose.CurrentReading)), nil)
	}
	if reading.PreviousReading > hose.CurrentReading+volumeEpsilon {
		res.warn(item, fmt.Sprintf("declared previous reading %s differs from stored reading %s",
			formatReading(reading.PreviousReading), formatReading(hose.CurrentReading)))
	}

	m, err := s.reader.Measure(reading.PreviousReading, reading.CurrentReading, reading.Unit)
	switch {
	case errors.Is(err, ErrNoSale):
		summary.Unit = string(m.Unit)
		summary.Outcome = closure.OutcomeNoSale
		res.warn(item, "no sale")
		s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeNoSale, "")
		return summary, zeroTotals()
	case errors.Is(err, ErrReadingRegression):
		return fail("invalid meter pair", err)
	case err != nil:
		return fail("unsupported reading unit", err)
	}
	summary.Unit = string(m.Unit)
	summary.Sold = units.Round(m.Sold, 3)
	summary.SoldLiters = m.Liters
	summary.SoldGallons = m.Gallons

	advance := func() {
		history := s.reader.History(s.ids.NewID(), hose.ID, ws.closureID, m, ws.now)
		ws.advanceHose(hose, reading.CurrentReading, history)
	}

	product, err := ws.product(ctx, s.products, reading.ProductCode)
	if err != nil {
		return fail("product lookup failed", err)
	}
	if product == nil {
		return fail("product "+reading.ProductCode+" not found", nil)
	}
	pricePerLiter, err := product.PricePerLiter()
	if err != nil {
		return fail("product "+product.Code+" is not sold by volume", err)
	}
	sale := s.reader.Price(m, pricePerLiter)
	summary.PricePerLiter = sale.PricePerLiter
	summary.PricePerGallon = sale.PricePerGallon

	if product.IsFuel {
		tank, err := ws.tankForProduct(ctx, s.tanks, product.Code)
		if err != nil {
			advance()
			return fail("tank lookup failed", err)
		}
		if tank == nil {
			advance()
			return fail("no tank holds product "+product.Code, nil)
		}
		if m.LitersRaw > tank.LevelLiters+volumeEpsilon {
			advance()
			return fail(fmt.Sprintf("insufficient volume in tank %s (available %.2f L, sold %.2f L)",
				tank.ID, tank.LevelLiters, m.LitersRaw), nil)
		}
		ws.setTankLevel(tank.ID, math.Max(0, tank.LevelLiters-m.LitersRaw))
		if tank.BelowMinimum() {
			res.warn(item, fmt.Sprintf("tank %s below minimum level", tank.ID))
		}
	} else {
		productUnit, _ := product.VolumeUnit()
		quantity, _ := units.FromBase(m.LitersRaw, productUnit)
		if quantity > product.Stock+volumeEpsilon {
			advance()
			return fail(fmt.Sprintf("insufficient stock for %s (available %s, sold %s)",
				product.Code, formatReading(product.Stock), formatReading(quantity)), nil)
		}
		ws.setStock(product.Code, math.Max(0, product.Stock-quantity))
	}
	advance()

	summary.Value = sale.Value
	summary.InventoryUpdated = true
	summary.Outcome = closure.OutcomeProcessed
	s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeProcessed, "")
	return summary, closure.Totals{
		Liters:           m.LitersRaw,
		FuelValue:        sale.Value,
		ProductValue:     decimal.Zero,
		Value:            sale.Value,
		FuelSales:        1,
		TransactionCount: 1,
	}
}

func (s *ShiftClosureService) processTanks(ctx context.Context, ws *workingSet, req closure.ShiftClosureRequest) stageResult {
	res := stageResult{stage: closure.StageTanks}
	for _, reading := range req.Tanks {
		res.tanks = append(res.tanks, s.processTank(ctx, ws, &res, reading))
	}
	return res
}

func (s *ShiftClosureService) processTank(ctx context.Context, ws *workingSet, res *stageResult, reading closure.TankReading) closure.TankSummary {
	item := "tank " + reading.TankID
	summary := closure.TankSummary{
		TankID:        reading.TankID,
		FluidHeightCM: reading.FluidHeight,
		Outcome:       closure.OutcomeFailed,
	}
	fail := func(reason string, err error) closure.TankSummary {
		itemErr := &closure.ItemProcessingError{Stage: res.stage, Item: item, Reason: reason, Err: err}
		res.fail(closure.KindItem, item, strings.TrimPrefix(itemErr.Error(), item+": "))
		summary.Error = itemErr.Error()
		s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeFailed, summary.Error)
		return summary
	}

	tank, err := ws.tank(ctx, s.tanks, reading.TankID)
	switch {
	case err != nil:
		return fail("tank lookup failed", err)
	case tank == nil:
		return fail("tank not found", nil)
	case tank.PointOfSaleID != ws.pointOfSaleID:
		return fail("tank belongs to point of sale "+tank.PointOfSaleID, nil)
	case math.IsNaN(reading.FluidHeight) || reading.FluidHeight < 0:
		return fail("fluid height must be a non-negative number", nil)
	}
	summary.ProductCode = tank.ProductCode
	summary.CapacityLiters = tank.CapacityLiters
	if reading.TankType != "" && tank.TankType != "" && !strings.EqualFold(reading.TankType, tank.TankType) {
		res.warn(item, fmt.Sprintf("declared tank type %s differs from configured %s", reading.TankType, tank.TankType))
	}

	measured, err := s.volumes.LookupVolume(ctx, tank.ID, reading.FluidHeight)
	if err != nil {
		return fail("volume lookup failed", err)
	}
	book := tank.LevelLiters
	level, clamped := tank.ClampLevel(measured)
	if clamped {
		res.warn(item, fmt.Sprintf("measured volume %.2f L clamped to %.2f L", measured, level))
	}
	ws.setTankLevel(tank.ID, level)

	summary.MeasuredLiters = units.Round2(measured)
	summary.LevelLiters = units.Round2(level)
	summary.BookLiters = units.Round2(book)
	summary.DifferenceLiters = units.Round2(level - book)
	summary.FillPercent = tank.FillPercent()
	summary.Outcome = closure.OutcomeProcessed
	if tank.BelowMinimum() {
		res.warn(item, fmt.Sprintf("level %.2f L below minimum %.2f L", level, tank.MinimumLiters))
	}
	s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeProcessed, "")
	return summary
}

func (s *ShiftClosureService) processProductSales(ctx context.Context, ws *workingSet, req closure.ShiftClosureRequest) stageResult {
	res := stageResult{stage: closure.StageProductSales, totals: zeroTotals()}
	for _, sale := range req.ProductSales {
		outcome, totals := s.processSale(ctx, ws, &res, sale)
		res.productSales = append(res.productSales, outcome)
		res.totals = res.totals.Add(totals)
	}
	return res
}

func (s *ShiftClosureService) processSale(ctx context.Context, ws *workingSet, res *stageResult, sale closure.ProductSale) (closure.ProductSaleOutcome, closure.Totals) {
	item := "product " + sale.ProductCode
	outcome := closure.ProductSaleOutcome{
		ProductCode:       sale.ProductCode,
		Quantity:          sale.Quantity,
		Unit:              sale.Unit,
		UnitPrice:         sale.UnitPrice,
		DeclaredLineTotal: sale.DeclaredLineTotal,
		Value:             decimal.Zero,
		Outcome:           closure.OutcomeFailed,
	}
	fail := func(reason string, err error) (closure.ProductSaleOutcome, closure.Totals) {
		itemErr := &closure.ItemProcessingError{Stage: res.stage, Item: item, Reason: reason, Err: err}
		res.fail(closure.KindItem, item, strings.TrimPrefix(itemErr.Error(), item+": "))
		outcome.Error = itemErr.Error()
		s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeFailed, outcome.Error)
		return outcome, zeroTotals()
	}

	if math.IsNaN(sale.Quantity) || sale.Quantity <= 0 {
		return fail("quantity must be positive", nil)
	}
	product, err := ws.product(ctx, s.products, sale.ProductCode)
	if err != nil {
		return fail("product lookup failed", err)
	}
	if product == nil {
		return fail("product not found", nil)
	}
	if product.IsFuel {
		return fail("fuel product "+product.Code+" is sold through dispenser hoses, not as a product sale", nil)
	}

	stockQuantity := sale.Quantity
	if sale.Unit != "" && !masterdata.SameCode(sale.Unit, product.Unit) {
		converted, err := units.ConvertNamed(sale.Quantity, sale.Unit, product.Unit)
		if err != nil {
			return fail(fmt.Sprintf("cannot convert %s to %s", sale.Unit, product.Unit), err)
		}
		stockQuantity = converted
	}
	outcome.StockQuantity = units.Round(stockQuantity, 3)
	if stockQuantity > product.Stock+volumeEpsilon {
		return fail(fmt.Sprintf("insufficient stock (available %s, requested %s)",
			formatReading(product.Stock), formatReading(stockQuantity)), nil)
	}

	unitPrice := sale.UnitPrice
	if unitPrice.IsZero() {
		unitPrice = product.UnitPrice
	}
	outcome.UnitPrice = unitPrice
	value := unitPrice.Mul(decimal.NewFromFloat(sale.Quantity)).Round(2)
	if !sale.DeclaredLineTotal.IsZero() {
		diff := value.Sub(sale.DeclaredLineTotal).Abs()
		if s.lineErrorThreshold.IsPositive() && diff.GreaterThan(s.lineErrorThreshold) {
			return fail(fmt.Sprintf("declared line total %s differs from computed %s",
				sale.DeclaredLineTotal.StringFixed(2), value.StringFixed(2)), nil)
		}
		if diff.GreaterThan(s.lineTolerance) {
			res.warn(item, fmt.Sprintf("declared line total %s differs from computed %s",
				sale.DeclaredLineTotal.StringFixed(2), value.StringFixed(2)))
		}
	}

	remaining := math.Max(0, product.Stock-stockQuantity)
	ws.setStock(product.Code, remaining)
	outcome.RemainingStock = units.Round(remaining, 3)
	outcome.Value = value
	outcome.Outcome = closure.OutcomeProcessed
	if product.MinimumStock > 0 && remaining < product.MinimumStock {
		res.warn(item, fmt.Sprintf("stock %s below minimum %s", formatReading(remaining), formatReading(product.MinimumStock)))
	}
	s.itemProcessed(ctx, ws, res.stage, item, closure.OutcomeProcessed, "")
	return outcome, closure.Totals{
		FuelValue:        decimal.Zero,
		ProductValue:     value,
		Value:            value,
		ProductSales:     1,
		TransactionCount: 1,
	}
}

func (s *ShiftClosureService) checkStatistics(ws *workingSet, req closure.ShiftClosureRequest, totals closure.Totals) stageResult {
	res := stageResult{stage: closure.StageStatistics}
	if req.DeclaredTransactionCount == nil {
		return res
	}
	declared := *req.DeclaredTransactionCount
	counted := totals.FuelSales + totals.ProductSales
	if declared != counted {
		res.warn("", fmt.Sprintf("declared transaction count %d differs from processed sales %d", declared, counted))
	}
	return res
}

func (s *ShiftClosureService) reconcilePayments(ws *workingSet, req closure.ShiftClosureRequest, calculated decimal.Decimal) stageResult {
	res := stageResult{stage: closure.StagePayments}
	if req.Payments == nil {
		res.warn("", "no payment summary declared")
		return res
	}
	rec, warnings, err := s.reconciler.Reconcile(*req.Payments, calculated)
	res.payments = &rec
	for _, warning := range warnings {
		res.warn("payments", warning)
	}
	if err != nil {
		res.fail(closure.KindReconciliation, "payments", err.Error())
	}
	if !rec.Variance.IsZero() {
		res.warn("payments", fmt.Sprintf("declared total %s differs from calculated sales %s (variance %s)",
			rec.DeclaredTotal.StringFixed(2), rec.CalculatedTotal.StringFixed(2), rec.Variance.StringFixed(2)))
	}
	return res
}

// persist commits every accumulated mutation together with the closure record.
func (s *ShiftClosureService) persist(ctx context.Context, ws *workingSet, req closure.ShiftClosureRequest, results []stageResult, started time.Time) stageResult {
	res := stageResult{stage: closure.StagePersistence}
	folded := fold(results)
	stages := make([]closure.StageTiming, 0, len(results))
	for _, r := range results {
		stages = append(stages, closure.StageTiming{Stage: r.stage, Duration: r.duration})
	}
	record := closure.ClosureRecord{
		ID:            ws.closureID,
		SchemaVersion: closure.SchemaVersion,
		PointOfSaleID: req.PointOfSaleID,
		StartTime:     req.StartTime,
		FinishTime:    req.FinishTime,
		Input:         closure.InputSnapshot{Request: req},
		Output: closure.OutputSnapshot{
			Status:       deriveStatus(results),
			Dispensers:   folded.Dispensers,
			Tanks:        folded.Tanks,
			TankTotals:   folded.TankTotals,
			ProductSales: folded.ProductSales,
			Payments:     folded.Payments,
			Totals:       folded.Totals,
			Issues:       folded.Issues,
		},
		Metadata: closure.ProcessingMetadata{
			ProcessedAt: ws.now,
			Duration:    time.Since(started),
			Stages:      stages,
			Actor:       req.Operator,
		},
	}

	if err := s.store.Commit(ctx, ws.changeSet(record)); err != nil {
		persistErr := &closure.PersistenceError{Err: err}
		res.fail(closure.KindPersistence, "", persistErr.Error())
		s.logger.Error("shift closure commit failed",
			zap.String("closure_id", ws.closureID),
			zap.String("point_of_sale_id", ws.pointOfSaleID),
			zap.Error(err),
		)
	}
	return res
}

func formatReading(v float64) string {
	return decimal.NewFromFloat(v).Round(3).String()
}
