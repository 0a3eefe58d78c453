package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"marketmaker/internal/exchange"
	"marketmaker/internal/models"
)

// ============================================================================
// Калибровка параметров GLFT по рыночным данным
// ============================================================================

// ErrInsufficientSamples - данных недостаточно для оценки параметра
var ErrInsufficientSamples = errors.New("insufficient samples for calibration")

// Фолбэки при недостатке данных
const (
	DefaultSigma      = 0.5
	DefaultIntensityA = 0.5
	DefaultIntensityK = 1.5

	intensityBins       = 15
	intensityPercentile = 0.90
	minCloses           = 3
	minTrades           = 10
)

// CalibrationConfig - параметры выборки данных для калибровки
type CalibrationConfig struct {
	Symbol      string
	WindowDays  int    // глубина истории свечей для sigma
	Timeframe   string // таймфрейм свечей: 1m, 5m, 1h, 4h, 1d
	TradeSample int    // размер выборки публичных сделок для A и k
}

// CalibrationResult - оцененные параметры модели
type CalibrationResult struct {
	Sigma      float64   `json:"sigma"`
	A          float64   `json:"a"`
	K          float64   `json:"k"`
	Candles    int       `json:"candles"`
	Trades     int       `json:"trades"`
	FinishedAt time.Time `json:"finished_at"`
}

// Calibrator оценивает sigma, A и k по истории биржи
type Calibrator struct {
	gw    exchange.Gateway
	log   *zap.Logger
	clock Clock
	cfg   CalibrationConfig
}

// NewCalibrator создает калибратор
func NewCalibrator(gw exchange.Gateway, cfg CalibrationConfig, log *zap.Logger, clock Clock) *Calibrator {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1h"
	}
	if cfg.TradeSample <= 0 {
		cfg.TradeSample = 500
	}
	return &Calibrator{gw: gw, log: log, clock: clock, cfg: cfg}
}

// Run выполняет полную калибровку. При недостатке данных возвращает
// фолбэки вместо ошибки: движок должен котировать и на тонком рынке.
func (c *Calibrator) Run(ctx context.Context) (*CalibrationResult, error) {
	result := &CalibrationResult{
		Sigma: DefaultSigma,
		A:     DefaultIntensityA,
		K:     DefaultIntensityK,
	}

	startNS := c.clock.Now().AddDate(0, 0, -c.cfg.WindowDays).UnixNano()
	candles, err := c.gw.FetchCandles(ctx, c.cfg.Symbol, c.cfg.Timeframe, startNS, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	result.Candles = len(candles)

	sigma, err := c.estimateSigma(candles)
	if err != nil {
		c.log.Warn("sigma fallback", zap.Int("candles", len(candles)), zap.Error(err))
	} else {
		result.Sigma = sigma
	}

	trades, err := c.gw.FetchTrades(ctx, c.cfg.Symbol, startNS, c.cfg.TradeSample)
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	result.Trades = len(trades)

	a, k, err := c.estimateIntensity(trades)
	if err != nil {
		c.log.Warn("intensity fallback", zap.Int("trades", len(trades)), zap.Error(err))
	} else {
		result.A = a
		result.K = k
	}

	result.FinishedAt = c.clock.Now()
	c.log.Info("calibration finished",
		zap.Float64("sigma", result.Sigma),
		zap.Float64("a", result.A),
		zap.Float64("k", result.K),
		zap.Int("candles", result.Candles),
		zap.Int("trades", result.Trades))
	return result, nil
}

// estimateSigma оценивает волатильность: стандартное отклонение
// логарифмических доходностей, нормированное на секунду таймфрейма
func (c *Calibrator) estimateSigma(candles []*exchange.Candle) (float64, error) {
	if len(candles) < minCloses {
		return 0, fmt.Errorf("%w: %d closes", ErrInsufficientSamples, len(candles))
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < minCloses-1 {
		return 0, fmt.Errorf("%w: %d returns", ErrInsufficientSamples, len(returns))
	}

	intervalSecs, err := timeframeSeconds(c.cfg.Timeframe)
	if err != nil {
		return 0, err
	}
	return stddev(returns) / math.Sqrt(intervalSecs), nil
}

// estimateIntensity оценивает A и k модели интенсивности исполнений
// lambda(delta) = A*exp(-k*delta).
//
// Расстояния цен сделок от медианы группируются в гистограмму
// (хвост сверх 90-го перцентиля отбрасывается), затем МНК-прямая
// по log(count+1) дает k = -slope и A = exp(intercept).
func (c *Calibrator) estimateIntensity(trades []*exchange.PublicTrade) (float64, float64, error) {
	if len(trades) < minTrades {
		return 0, 0, fmt.Errorf("%w: %d trades", ErrInsufficientSamples, len(trades))
	}

	prices := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.Price > 0 {
			prices = append(prices, t.Price)
		}
	}
	if len(prices) < minTrades {
		return 0, 0, fmt.Errorf("%w: %d prices", ErrInsufficientSamples, len(prices))
	}

	med := median(prices)
	distances := make([]float64, len(prices))
	for i, p := range prices {
		distances[i] = math.Abs(p - med)
	}
	sort.Float64s(distances)

	maxDist := percentile(distances, intensityPercentile)
	if maxDist <= 0 {
		return 0, 0, fmt.Errorf("%w: zero price dispersion", ErrInsufficientSamples)
	}

	counts := make([]float64, intensityBins)
	binWidth := maxDist / intensityBins
	for _, d := range distances {
		if d > maxDist {
			continue
		}
		bin := int(d / binWidth)
		if bin >= intensityBins {
			bin = intensityBins - 1
		}
		counts[bin]++
	}

	xs := make([]float64, intensityBins)
	ys := make([]float64, intensityBins)
	for i := 0; i < intensityBins; i++ {
		xs[i] = (float64(i) + 0.5) * binWidth
		ys[i] = math.Log(counts[i] + 1)
	}

	slope, intercept := linearFit(xs, ys)
	k := math.Max(-slope, 1e-6)
	a := math.Exp(intercept)
	return a, k, nil
}

// ============================================================================
// Планировщик ежедневной калибровки
// ============================================================================

// ParamsSaver персистит обновленные параметры стратегии
type ParamsSaver interface {
	SaveParams(ctx context.Context, params models.StrategyParams) error
}

// CalibrationScheduler запускает калибровку раз в сутки в заданное время.
// Калибровка применяется только при включенном auto-tuning; сбой
// калибровки логируется и не останавливает движок.
type CalibrationScheduler struct {
	calibrator *Calibrator
	controller *Controller
	saver      ParamsSaver
	log        *zap.Logger
	clock      Clock

	updateHour   int
	updateMinute int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCalibrationScheduler создает планировщик. updateTime в формате "HH:MM".
func NewCalibrationScheduler(calibrator *Calibrator, controller *Controller, saver ParamsSaver, updateTime string, log *zap.Logger, clock Clock) (*CalibrationScheduler, error) {
	if clock == nil {
		clock = RealClock()
	}
	var hour, minute int
	if _, err := fmt.Sscanf(updateTime, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("invalid update time %q: %w", updateTime, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid update time %q", updateTime)
	}
	return &CalibrationScheduler{
		calibrator:   calibrator,
		controller:   controller,
		saver:        saver,
		log:          log,
		clock:        clock,
		updateHour:   hour,
		updateMinute: minute,
	}, nil
}

// Start запускает фоновый цикл планировщика
func (s *CalibrationScheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop останавливает планировщик
func (s *CalibrationScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *CalibrationScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastRunDay int
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if now.Hour() != s.updateHour || now.Minute() != s.updateMinute {
				continue
			}
			day := now.YearDay() + now.Year()*1000
			if day == lastRunDay {
				continue
			}
			lastRunDay = day
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход калибровки и применяет результат.
// No-op если auto-tuning выключен.
func (s *CalibrationScheduler) RunOnce(ctx context.Context) {
	params := s.controller.Params()
	if !params.AutoTuningEnabled {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	result, err := s.calibrator.Run(rctx)
	if err != nil {
		CalibrationRunsTotal.WithLabelValues("error").Inc()
		s.log.Error("calibration failed", zap.Error(err))
		return
	}

	params.Sigma = result.Sigma
	params.A = result.A
	params.K = result.K
	if err := s.controller.SetParams(params); err != nil {
		CalibrationRunsTotal.WithLabelValues("error").Inc()
		s.log.Error("calibrated params rejected", zap.Error(err))
		return
	}
	if s.saver != nil {
		if err := s.saver.SaveParams(ctx, params); err != nil {
			s.log.Warn("calibrated params persist failed", zap.Error(err))
		}
	}
	CalibrationRunsTotal.WithLabelValues("ok").Inc()
}

// ============================================================================
// Статистика
// ============================================================================

func timeframeSeconds(tf string) (float64, error) {
	switch tf {
	case "1m":
		return 60, nil
	case "5m":
		return 300, nil
	case "15m":
		return 900, nil
	case "1h":
		return 3600, nil
	case "4h":
		return 14400, nil
	case "1d":
		return 86400, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs) - 1)
	return math.Sqrt(variance)
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile по отсортированному срезу
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// linearFit - МНК-прямая y = slope*x + intercept
func linearFit(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
