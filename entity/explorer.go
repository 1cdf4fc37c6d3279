package entity

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common/math"
)

var jsonNull = []byte("null")

// Block is passed through from the explorer API untouched. Only the header
// number and the transactions are decoded; MarshalJSON re-emits the original
// object when one was decoded.
type Block struct {
	Header       Header        `json:"header"`
	Transactions []Transaction `json:"transactions"`

	raw json.RawMessage
}

// Header number is kept raw: explorer APIs emit it as a decimal string,
// a hex quantity or a bare JSON number.
type Header struct {
	Number json.RawMessage `json:"number,omitempty"`
}

type blockFields Block

func (b *Block) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*b = Block{raw: json.RawMessage(jsonNull)}
		return nil
	}

	var fields blockFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*b = Block(fields)
	b.raw = append(json.RawMessage(nil), data...)

	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	if b.raw != nil {
		return b.raw, nil
	}

	return json.Marshal(blockFields(b))
}

// Number parses the header number, decimal or 0x-prefixed hex.
func (b Block) Number() (*big.Int, bool) {
	if len(b.Header.Number) == 0 {
		return nil, false
	}

	s := string(b.Header.Number)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	return math.ParseBig256(s)
}

// Transaction keeps the API's transaction object verbatim. Hash is the only
// field the loaders rely on; Details decodes the rest on demand.
type Transaction struct {
	Hash string `json:"hash"`

	raw json.RawMessage
}

// TransactionDetails is the record shape served by the explorer API.
type TransactionDetails struct {
	Hash             string  `json:"hash"`
	Nonce            uint64  `json:"nonce"`
	BlockHash        *string `json:"block_hash"`
	BlockNumber      string  `json:"block_number"`
	TransactionIndex int64   `json:"transaction_index"`
	From             string  `json:"from"`
	To               string  `json:"to"`
	Value            string  `json:"value"`
	GasPrice         string  `json:"gas_price"`
	Gas              uint64  `json:"gas"`
	Input            string  `json:"input"`
	V                string  `json:"v"`
	R                string  `json:"r"`
	S                string  `json:"s"`
	ChainID          string  `json:"chain_id"`
	Type             string  `json:"type"`
	Method           string  `json:"method"`
	IsPending        bool    `json:"isPending"`
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*t = Transaction{raw: json.RawMessage(jsonNull)}
		return nil
	}

	var fields struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	t.Hash = fields.Hash
	t.raw = append(json.RawMessage(nil), data...)

	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}

	return json.Marshal(struct {
		Hash string `json:"hash"`
	}{Hash: t.Hash})
}

// IsNull reports whether the API sent null in place of this transaction.
func (t Transaction) IsNull() bool {
	return bytes.Equal(t.raw, jsonNull)
}

func (t Transaction) Details() (TransactionDetails, error) {
	var details TransactionDetails

	data, err := t.MarshalJSON()
	if err != nil {
		return details, err
	}

	err = json.Unmarshal(data, &details)
	return details, err
}

// Entry is a route parameter set for one transaction page.
type Entry struct {
	Hash string `json:"hash"`
}

// BlocksPage is the view-data of the blocks listing route.
type BlocksPage struct {
	Blocks []Block `json:"blocks"`
}

// TransactionPage is the view-data of the transaction detail route.
// Transaction is nil when loading failed.
type TransactionPage struct {
	Transaction *Transaction `json:"transaction"`
}
