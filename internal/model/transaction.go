package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodTransfer = "TRANSFER"
	MethodCall     = "CALL"
	MethodApprove  = "APPROVE"
	MethodSwap     = "SWAP"
)

// ValueEncoding описывает, в каком виде провайдер отдал сумму.
type ValueEncoding uint8

const (
	EncodingDecimal ValueEncoding = iota
	EncodingHexWei
	EncodingDecimalWei
)

// RawTransaction is a record exactly as a provider reported it.
type RawTransaction struct {
	Hash      string
	Timestamp string // unix seconds, 0x-hex seconds or RFC3339
	From      string
	To        string
	Value     string
	Encoding  ValueEncoding
	Input     string
	Token     string
	Method    string
	Chain     string
}

type CanonicalTransaction struct {
	TxID        string
	Timestamp   time.Time
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	Token       string
	Method      string
	Chain       string
}

// ClassifyMethod: эвристика по наличию calldata, без декодирования.
func ClassifyMethod(input string) string {
	if input == "" || input == "0x" {
		return MethodTransfer
	}
	return MethodCall
}
