package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
	"github.com/mamadbah2/shopledger/internal/service/reporting"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrUnknownItem is returned when /stock names no known inventory item.
var ErrUnknownItem = errors.New("unknown inventory item")

const (
	readyTimeout = 5 * time.Second
	monthLayout  = "2006-01"
)

// HelpText lists every supported command.
const HelpText = `Commands:
/expense <amount> <category> <item...>
/revenue <amount> [online|cash|other] [notes...]
/stock <item name> <+n|-n|n>
/summary [YYYY-MM-DD]
/month [YYYY-MM]
/low
/help`

// SessionProvider hands out live ledger sessions.
type SessionProvider interface {
	Acquire(ctx context.Context, principal ledger.Principal) (*ledger.Session, error)
}

// Dispatcher executes parsed commands on behalf of a sender.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	sessions SessionProvider
	allowed  map[string]bool
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService constructs a command dispatcher. Only senders listed in
// allowedSenders may use it.
func NewService(sessions SessionProvider, allowedSenders []string, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	allowed := make(map[string]bool, len(allowedSenders))
	for _, sender := range allowedSenders {
		if sender = strings.TrimSpace(sender); sender != "" {
			allowed[sender] = true
		}
	}
	return &Service{
		sessions: sessions,
		allowed:  allowed,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// Principal maps a WhatsApp sender to a ledger identity.
func Principal(sender, name string) ledger.Principal {
	return ledger.Principal{UserID: "whatsapp:" + sender, DisplayName: name}
}

// HandleCommand runs cmd in the sender's session and returns the reply text.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	if cmd.Type == models.CommandHelp {
		return HelpText, nil
	}
	if cmd.Type == models.CommandUnknown {
		return "", ErrUnsupportedCommand
	}
	if !s.allowed[sender] {
		return "", ledger.ErrNotAuthenticated
	}

	session, err := s.sessions.Acquire(ctx, Principal(sender, ""))
	if err != nil {
		return "", err
	}
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := session.WaitReady(readyCtx); err != nil {
		return "", fmt.Errorf("waiting for ledger data: %w", err)
	}

	today := models.FormatDate(s.now().In(s.location))
	reports := reporting.NewService(session, s.location, s.logger)

	switch cmd.Type {
	case models.CommandExpense:
		in, err := buildExpenseInput(cmd, today)
		if err != nil {
			return "", err
		}
		record, err := session.AddExpense(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Expense logged: %s %s (%s) on %s.", record.Item, reporting.Money(record.Amount), record.Category.Label(), record.Date), nil
	case models.CommandRevenue:
		in, err := buildRevenueInput(cmd, today)
		if err != nil {
			return "", err
		}
		record, err := session.AddRevenue(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Revenue logged: %s (%s) on %s.", reporting.Money(record.Amount), record.Source.Label(), record.Date), nil
	case models.CommandStock:
		return s.updateStock(ctx, session, cmd)
	case models.CommandSummary:
		date := today
		if len(cmd.Args) > 0 {
			if _, err := models.ParseDate(cmd.Args[0]); err != nil {
				return "", ErrInvalidArguments
			}
			date = cmd.Args[0]
		}
		return reports.DailyText(date), nil
	case models.CommandMonth:
		month := s.now().In(s.location)
		if len(cmd.Args) > 0 {
			parsed, err := time.Parse(monthLayout, cmd.Args[0])
			if err != nil {
				return "", ErrInvalidArguments
			}
			month = parsed
		}
		return reports.MonthlyText(month.Year(), int(month.Month())), nil
	case models.CommandLow:
		if text := reports.LowStockText(); text != "" {
			return text, nil
		}
		return "All stock levels are fine.", nil
	default:
		return "", ErrUnsupportedCommand
	}
}

// updateStock handles "/stock <name...> <change>". A signed change adjusts
// the quantity; an unsigned one sets it.
func (s *Service) updateStock(ctx context.Context, session *ledger.Session, cmd models.Command) (string, error) {
	if len(cmd.Args) < 2 {
		return "", ErrInvalidArguments
	}
	last := cmd.Args[len(cmd.Args)-1]
	value, err := strconv.ParseFloat(last, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return "", ErrInvalidArguments
	}
	relative := strings.HasPrefix(last, "+") || strings.HasPrefix(last, "-")
	name := strings.Join(cmd.Args[:len(cmd.Args)-1], " ")

	snap := session.Snapshot()
	if item, ok := findByName(snap.Stock, name); ok {
		quantity, err := applyChange(relative, value,
			func(d float64) (float64, error) { return session.AdjustStockQuantity(ctx, item.ID, d) },
			func(q float64) (float64, error) { return session.SetStockQuantity(ctx, item.ID, q) },
		)
		if err != nil {
			return "", err
		}
		return stockReply(item.Name, item.Unit, quantity, item.MinLevel), nil
	}
	if item, ok := findByName(snap.Consumables, name); ok {
		quantity, err := applyChange(relative, value,
			func(d float64) (float64, error) { return session.AdjustConsumableQuantity(ctx, item.ID, d) },
			func(q float64) (float64, error) { return session.SetConsumableQuantity(ctx, item.ID, q) },
		)
		if err != nil {
			return "", err
		}
		return stockReply(item.Name, item.Unit, quantity, item.MinLevel), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownItem, name)
}

func applyChange(relative bool, value float64, adjust, set func(float64) (float64, error)) (float64, error) {
	if relative {
		return adjust(value)
	}
	return set(value)
}

func stockReply(name, unit string, quantity, minLevel float64) string {
	reply := fmt.Sprintf("%s now at %s %s.", name, decimal.NewFromFloat(quantity).String(), unit)
	if models.IsLowLevel(quantity, minLevel) {
		reply += " ⚠️ Below minimum, restock soon."
	}
	return reply
}

func findByName[C models.Category](items []models.InventoryItem[C], name string) (models.InventoryItem[C], bool) {
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			return item, true
		}
	}
	return models.InventoryItem[C]{}, false
}

func buildExpenseInput(cmd models.Command, today string) (models.ExpenseInput, error) {
	if len(cmd.Args) < 3 {
		return models.ExpenseInput{}, ErrInvalidArguments
	}

	amount, err := decimal.NewFromString(cmd.Args[0])
	if err != nil {
		return models.ExpenseInput{}, ErrInvalidArguments
	}

	return models.ExpenseInput{
		Date:     today,
		Category: models.ExpenseCategory(strings.ToLower(cmd.Args[1])),
		Item:     strings.Join(cmd.Args[2:], " "),
		Amount:   &amount,
	}, nil
}

func buildRevenueInput(cmd models.Command, today string) (models.RevenueInput, error) {
	if len(cmd.Args) == 0 {
		return models.RevenueInput{}, ErrInvalidArguments
	}

	amount, err := decimal.NewFromString(cmd.Args[0])
	if err != nil {
		return models.RevenueInput{}, ErrInvalidArguments
	}

	in := models.RevenueInput{Date: today, Amount: &amount}
	rest := cmd.Args[1:]
	if len(rest) > 0 {
		if source := models.RevenueSource(strings.ToLower(rest[0])); source.Valid() {
			in.Source = source
			rest = rest[1:]
		}
	}
	in.Notes = strings.Join(rest, " ")
	return in, nil
}
