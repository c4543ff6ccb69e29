package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MethodKind splits the remote RPC surface into reads and money movement.
// Classification is a fixed table, never inferred from parameters.
type MethodKind string

const (
	MethodKindRead     MethodKind = "READ"
	MethodKindMutating MethodKind = "MUTATING"
)

// TTLClass selects which configured cache TTL applies to a read method.
type TTLClass string

const (
	TTLClassList   TTLClass = "LIST"   // list endpoints, multi-minute TTL
	TTLClassLookup TTLClass = "LOOKUP" // lookup-by-id endpoints, usually no TTL
	TTLClassNone   TTLClass = "NONE"   // mutating methods, never cached
)

// MethodSpec describes one method of the remote platform's RPC surface.
type MethodSpec struct {
	Name     string
	Kind     MethodKind
	TTLClass TTLClass
}

// Remote method names.
const (
	MethodGetBalance           = "get_balance"
	MethodGetMachineRevenue    = "get_machine_revenue"
	MethodListVirtualAccounts  = "list_virtual_accounts"
	MethodListPayments         = "list_payments"
	MethodGetBeneficiary       = "get_beneficiary"
	MethodGetPayment           = "get_payment"
	MethodTransferMoney        = "transfer_money"
	MethodIdentifyPayment      = "identify_payment"
	MethodCreateVirtualAccount = "create_virtual_account"
	MethodCreateBeneficiary    = "create_beneficiary"
)

var methodTable = map[string]MethodSpec{
	MethodGetBalance:           {Name: MethodGetBalance, Kind: MethodKindRead, TTLClass: TTLClassList},
	MethodGetMachineRevenue:    {Name: MethodGetMachineRevenue, Kind: MethodKindRead, TTLClass: TTLClassList},
	MethodListVirtualAccounts:  {Name: MethodListVirtualAccounts, Kind: MethodKindRead, TTLClass: TTLClassList},
	MethodListPayments:         {Name: MethodListPayments, Kind: MethodKindRead, TTLClass: TTLClassList},
	MethodGetBeneficiary:       {Name: MethodGetBeneficiary, Kind: MethodKindRead, TTLClass: TTLClassLookup},
	MethodGetPayment:           {Name: MethodGetPayment, Kind: MethodKindRead, TTLClass: TTLClassLookup},
	MethodTransferMoney:        {Name: MethodTransferMoney, Kind: MethodKindMutating, TTLClass: TTLClassNone},
	MethodIdentifyPayment:      {Name: MethodIdentifyPayment, Kind: MethodKindMutating, TTLClass: TTLClassNone},
	MethodCreateVirtualAccount: {Name: MethodCreateVirtualAccount, Kind: MethodKindMutating, TTLClass: TTLClassNone},
	MethodCreateBeneficiary:    {Name: MethodCreateBeneficiary, Kind: MethodKindMutating, TTLClass: TTLClassNone},
}

// LookupMethod returns the table entry for a remote method name.
func LookupMethod(name string) (MethodSpec, bool) {
	spec, ok := methodTable[name]
	return spec, ok
}

// CanonicalParams serializes params with sorted keys so that equal parameter
// sets always produce the same string. Used both for signing and cache keys.
func CanonicalParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(params[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

// CacheKey derives the deterministic key for one (layer, method, params)
// triple: sha256 over the canonical serialization, hex encoded.
func CacheKey(layer Layer, method string, params map[string]any) string {
	payload := fmt.Sprintf("%s|%s|%s", layer, method, CanonicalParams(params))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
