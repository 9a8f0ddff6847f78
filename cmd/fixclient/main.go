package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	fix42nos "github.com/quickfixgo/fix42/newordersingle"
	fix44nos "github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/shopspring/decimal"
)

// InitiatorApp is a minimal order pump for exercising the venue end to end.
type InitiatorApp struct {
	useFIX42 bool
}

func (a *InitiatorApp) OnCreate(sessionID quickfix.SessionID) {}

func (a *InitiatorApp) OnLogon(sessionID quickfix.SessionID) {
	log.Println("logon success", sessionID)
	if a.useFIX42 {
		sendCrossFIX42(sessionID)
	} else {
		sendCrossFIX44(sessionID)
	}
}

func (a *InitiatorApp) OnLogout(sessionID quickfix.SessionID)                       {}
func (a *InitiatorApp) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}
func (a *InitiatorApp) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}
func (a *InitiatorApp) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}
func (a *InitiatorApp) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	log.Println("report:", msg.String())
	return nil
}

func sendCrossFIX44(sessionID quickfix.SessionID) {
	sell := fix44nos.New(
		field.NewClOrdID(randSeq(17)),
		field.NewSide(enum.Side_SELL),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	sell.SetSymbol("AAPL")
	sell.SetPrice(decimal.NewFromFloat(150.00), 2)
	sell.SetOrderQty(decimal.NewFromInt(100), 0)
	sell.SetTimeInForce(enum.TimeInForce_DAY)
	sell.SetSenderCompID(sessionID.SenderCompID)
	sell.SetTargetCompID(sessionID.TargetCompID)
	if err := quickfix.Send(sell); err != nil {
		log.Println("send sell:", err)
	}

	buy := fix44nos.New(
		field.NewClOrdID(randSeq(17)),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	buy.SetSymbol("AAPL")
	buy.SetPrice(decimal.NewFromFloat(150.50), 2)
	buy.SetOrderQty(decimal.NewFromInt(100), 0)
	buy.SetTimeInForce(enum.TimeInForce_DAY)
	buy.SetSenderCompID(sessionID.SenderCompID)
	buy.SetTargetCompID(sessionID.TargetCompID)
	if err := quickfix.Send(buy); err != nil {
		log.Println("send buy:", err)
	}
}

func sendCrossFIX42(sessionID quickfix.SessionID) {
	sell := fix42nos.New(
		field.NewClOrdID(randSeq(17)),
		field.NewHandlInst(enum.HandlInst_AUTOMATED_EXECUTION_ORDER_PRIVATE_NO_BROKER_INTERVENTION),
		field.NewSymbol("AAPL"),
		field.NewSide(enum.Side_SELL),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	sell.SetPrice(decimal.NewFromFloat(150.00), 2)
	sell.SetOrderQty(decimal.NewFromInt(100), 0)
	sell.SetSenderCompID(sessionID.SenderCompID)
	sell.SetTargetCompID(sessionID.TargetCompID)
	if err := quickfix.Send(sell); err != nil {
		log.Println("send sell:", err)
	}

	buy := fix42nos.New(
		field.NewClOrdID(randSeq(17)),
		field.NewHandlInst(enum.HandlInst_AUTOMATED_EXECUTION_ORDER_PRIVATE_NO_BROKER_INTERVENTION),
		field.NewSymbol("AAPL"),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	buy.SetPrice(decimal.NewFromFloat(150.50), 2)
	buy.SetOrderQty(decimal.NewFromInt(100), 0)
	buy.SetSenderCompID(sessionID.SenderCompID)
	buy.SetTargetCompID(sessionID.TargetCompID)
	if err := quickfix.Send(buy); err != nil {
		log.Println("send buy:", err)
	}
}

func main() {
	var useFIX42 bool
	flag.BoolVar(&useFIX42, "fix42", false, "send orders as FIX.4.2")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("usage: fixclient [-fix42] <config>")
	}
	cfgPath := flag.Arg(0)

	cfg, err := os.Open(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	defer cfg.Close() // nolint

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		log.Fatal(err)
	}

	app := &InitiatorApp{useFIX42: useFIX42}
	storeFactory := quickfix.NewMemoryStoreFactory()
	logFactory, _ := file.NewLogFactory(settings)
	initiator, err := quickfix.NewInitiator(app, storeFactory, settings, logFactory)
	if err != nil {
		log.Fatal(err)
	}
	if err := initiator.Start(); err != nil {
		log.Fatal(err)
	}
	log.Println("initiator started")
	select {}
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func randSeq(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
