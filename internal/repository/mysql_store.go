package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"MarketLens/internal/domain/models"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// writeChunkSize bounds multi-row insert statements.
const writeChunkSize = 500

// MySQLConfig holds connection and pool settings.
type MySQLConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// priceRow maps the prices table. (symbol, trade_date) is the primary key;
// a bar is immutable once correct, so upserts simply overwrite.
type priceRow struct {
	Symbol       string    `gorm:"column:symbol;type:varchar(32);primaryKey"`
	TradeDate    time.Time `gorm:"column:trade_date;type:date;primaryKey"`
	Open         float64   `gorm:"column:open"`
	High         float64   `gorm:"column:high"`
	Low          float64   `gorm:"column:low"`
	Close        float64   `gorm:"column:close"`
	Volume       int64     `gorm:"column:volume;type:bigint"`
	VWAP         float64   `gorm:"column:vwap"`
	Transactions int64     `gorm:"column:transactions;type:bigint"`
}

func (priceRow) TableName() string { return "prices" }

type companyRow struct {
	Symbol                    string  `gorm:"column:symbol;type:varchar(32);primaryKey"`
	CompanyName               string  `gorm:"column:company_name;type:varchar(255)"`
	Sector                    string  `gorm:"column:sector;type:varchar(255)"`
	Industry                  string  `gorm:"column:industry;type:varchar(255)"`
	MarketCap                 float64 `gorm:"column:market_cap"`
	WeightedSharesOutstanding float64 `gorm:"column:weighted_shares_outstanding"`
}

func (companyRow) TableName() string { return "companies" }

// eventRow maps the sma_events table keyed by (symbol, event_date,
// event_type); duplicate detections are dropped, never updated.
type eventRow struct {
	Symbol      string    `gorm:"column:symbol;type:varchar(32);primaryKey"`
	EventDate   time.Time `gorm:"column:event_date;type:date;primaryKey"`
	EventType   string    `gorm:"column:event_type;type:varchar(32);primaryKey"`
	ShortWindow int       `gorm:"column:short_window;not null"`
	LongWindow  int       `gorm:"column:long_window;not null"`
	ClosePrice  float64   `gorm:"column:close_price"`
	ShortSMA    float64   `gorm:"column:short_sma"`
	LongSMA     float64   `gorm:"column:long_sma"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (eventRow) TableName() string { return "sma_events" }

// MySQLStore implements SeriesStore and CompanyStore over GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewMySQLStore opens the connection pool. DATE columns are read in UTC
// so trade dates stay calendar-exact regardless of the server zone.
func NewMySQLStore(cfg MySQLConfig, lgr *logger.Logger) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	lgr.Info("mysql connected",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database))

	return &MySQLStore{db: db, logger: lgr}, nil
}

func (s *MySQLStore) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&priceRow{}, &companyRow{}, &eventRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *MySQLStore) ReadSeries(ctx context.Context, symbol string, from *time.Time) ([]models.PriceBar, error) {
	q := s.db.WithContext(ctx).Where("symbol = ?", symbol)
	if from != nil {
		q = q.Where("trade_date >= ?", util.Day(*from))
	}

	var rows []priceRow
	if err := q.Order("trade_date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	return barsFromRows(rows), nil
}

func (s *MySQLStore) ReadLookback(ctx context.Context, symbol string, through time.Time, n int) ([]models.PriceBar, error) {
	if n <= 0 {
		return nil, nil
	}

	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND trade_date <= ?", symbol, util.Day(through)).
		Order("trade_date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query lookback: %w", err)
	}

	// reverse to ASC
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return barsFromRows(rows), nil
}

func (s *MySQLStore) ReadBarsRange(ctx context.Context, from, to time.Time) ([]models.PriceBar, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("trade_date >= ? AND trade_date <= ?", util.Day(from), util.Day(to)).
		Order("symbol ASC, trade_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query bars range: %w", err)
	}
	return barsFromRows(rows), nil
}

func (s *MySQLStore) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&priceRow{}).
		Distinct("symbol").
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return symbols, nil
}

func (s *MySQLStore) WriteBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	rows := make([]priceRow, len(bars))
	for i, b := range bars {
		rows[i] = priceRow{
			Symbol:       b.Symbol,
			TradeDate:    util.Day(b.TradeDate),
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			VWAP:         b.VWAP,
			Transactions: b.Transactions,
		}
	}

	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, writeChunkSize)
	if tx.Error != nil {
		return 0, fmt.Errorf("upsert bars: %w", tx.Error)
	}
	return int(tx.RowsAffected), nil
}

func (s *MySQLStore) ReadLatestEventDate(ctx context.Context, symbol string) (*time.Time, error) {
	var row eventRow
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("event_date DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest event date: %w", err)
	}
	d := util.Day(row.EventDate)
	return &d, nil
}

func (s *MySQLStore) WriteEvents(ctx context.Context, events []models.SignalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{
			Symbol:      e.Symbol,
			EventDate:   util.Day(e.EventDate),
			EventType:   string(e.Type),
			ShortWindow: e.ShortWindow,
			LongWindow:  e.LongWindow,
			ClosePrice:  e.ClosePrice,
			ShortSMA:    e.ShortSMA,
			LongSMA:     e.LongSMA,
		}
	}

	// DoNothing keeps the first write; RowsAffected counts only new rows.
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, writeChunkSize)
	if tx.Error != nil {
		return 0, fmt.Errorf("insert events: %w", tx.Error)
	}
	return int(tx.RowsAffected), nil
}

func (s *MySQLStore) ReadEventsByDate(ctx context.Context, date time.Time, types ...models.EventType) ([]models.SignalEvent, error) {
	q := s.db.WithContext(ctx).Where("event_date = ?", util.Day(date))
	q = filterEventTypes(q, types)

	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return eventsFromRows(rows), nil
}

func (s *MySQLStore) ReadEventsRange(ctx context.Context, from, to time.Time, symbol string, types ...models.EventType) ([]models.SignalEvent, error) {
	q := s.db.WithContext(ctx).
		Where("event_date >= ? AND event_date <= ?", util.Day(from), util.Day(to))
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	q = filterEventTypes(q, types)

	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events range: %w", err)
	}
	return eventsFromRows(rows), nil
}

func (s *MySQLStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var rows []companyRow
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}

	out := make([]models.Company, len(rows))
	for i, r := range rows {
		out[i] = models.Company{
			Symbol:                    r.Symbol,
			CompanyName:               r.CompanyName,
			Sector:                    r.Sector,
			Industry:                  r.Industry,
			MarketCap:                 r.MarketCap,
			WeightedSharesOutstanding: r.WeightedSharesOutstanding,
		}
	}
	return out, nil
}

func (s *MySQLStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func filterEventTypes(q *gorm.DB, types []models.EventType) *gorm.DB {
	if len(types) == 0 {
		return q
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return q.Where("event_type IN ?", names)
}

func barsFromRows(rows []priceRow) []models.PriceBar {
	out := make([]models.PriceBar, len(rows))
	for i, r := range rows {
		out[i] = models.PriceBar{
			Symbol:       r.Symbol,
			TradeDate:    util.Day(r.TradeDate),
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			VWAP:         r.VWAP,
			Transactions: r.Transactions,
		}
	}
	return out
}

func eventsFromRows(rows []eventRow) []models.SignalEvent {
	out := make([]models.SignalEvent, len(rows))
	for i, r := range rows {
		out[i] = models.SignalEvent{
			Symbol:      r.Symbol,
			EventDate:   util.Day(r.EventDate),
			Type:        models.EventType(r.EventType),
			ClosePrice:  r.ClosePrice,
			ShortSMA:    r.ShortSMA,
			LongSMA:     r.LongSMA,
			ShortWindow: r.ShortWindow,
			LongWindow:  r.LongWindow,
		}
	}
	models.SortEvents(out)
	return out
}
