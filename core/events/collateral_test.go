package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"dscvault/crypto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

func makeAddress(seed byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.DSCPrefix, raw)
}

func TestCollateralDepositedRendering(t *testing.T) {
	user := makeAddress(0x10)
	asset := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	evt := CollateralDeposited{User: user, Asset: asset, Qty: big.NewInt(42)}

	if evt.EventType() != TypeCollateralDeposited {
		t.Fatalf("unexpected type %s", evt.EventType())
	}
	rendered := evt.Event()
	if rendered.Type != TypeCollateralDeposited {
		t.Fatalf("unexpected rendered type %s", rendered.Type)
	}
	if rendered.Attributes["user"] != user.String() {
		t.Fatalf("unexpected user attribute %q", rendered.Attributes["user"])
	}
	if rendered.Attributes["asset"] != strings.ToLower(asset.Hex()) {
		t.Fatalf("unexpected asset attribute %q", rendered.Attributes["asset"])
	}
	if rendered.Attributes["qty"] != "42" {
		t.Fatalf("unexpected qty attribute %q", rendered.Attributes["qty"])
	}
}

func TestLiquidationRendering(t *testing.T) {
	evt := Liquidation{
		ID:          uuid.New(),
		Liquidator:  makeAddress(0x11),
		Target:      makeAddress(0x12),
		Asset:       common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		DebtCovered: big.NewInt(1000),
		SeizedQty:   big.NewInt(33),
	}
	rendered := evt.Event()
	if rendered.Attributes["id"] != evt.ID.String() {
		t.Fatalf("missing liquidation id, got %q", rendered.Attributes["id"])
	}
	if rendered.Attributes["debtCovered"] != "1000" || rendered.Attributes["seizedQty"] != "33" {
		t.Fatalf("unexpected amounts %v", rendered.Attributes)
	}
}

func TestNilAmountsOmitted(t *testing.T) {
	evt := DebtMinted{User: makeAddress(0x10)}
	rendered := evt.Event()
	if _, ok := rendered.Attributes["amount"]; ok {
		t.Fatalf("nil amount should be omitted, got %v", rendered.Attributes)
	}
}

func TestLogEmitterWritesRenderedAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	emitter := NewLogEmitter(logger)

	user := makeAddress(0x10)
	emitter.Emit(DebtBurned{User: user, Payer: user, Amount: big.NewInt(7)})

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v (line %q)", err, buf.String())
	}
	if record["type"] != TypeDebtBurned {
		t.Fatalf("unexpected type field %v", record["type"])
	}
	if record["user"] != user.String() || record["amount"] != "7" {
		t.Fatalf("unexpected attributes in %v", record)
	}
}
