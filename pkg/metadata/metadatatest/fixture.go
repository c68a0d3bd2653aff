// Package metadatatest provides a small but complete runtime metadata
// fixture for tests: System, Timestamp, Balances and SubtensorModule
// pallets with storage, calls, events, errors, constants and the usual
// signed extensions.
package metadatatest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

// Chain facts the fixture node reports.
const (
	GenesisHash        = "0x2f0555cc76fc2840a25a6ea3b9637146806f1f44b090c175ffde2a7e5ab36c03"
	SpecName           = "node-subtensor"
	SpecVersion        = 205
	TransactionVersion = 1
	SS58Prefix         = 42
)

// Portable type ids of the fixture.
const (
	TypeU8 uint32 = iota
	TypeByteArray32
	TypeAccountID
	TypeU32
	TypeU64
	TypeU128
	TypeCompactU128
	TypeAccountInfo
	TypeAccountData
	TypeStakeKey
	TypeBalancesCall
	TypeMultiAddress
	TypeCompactU32
	TypeBytes
	TypeByteArray20
	TypeSubtensorCall
	TypeSystemCall
	TypeRuntimeCall
	TypeSystemEvent
	TypeBalancesEvent
	TypeBalancesError
	TypeU16
	TypeBool
	TypeOptionBool
	TypeUncheckedExtrinsic
	TypeMultiSignature
	TypeByteArray64
	TypeByteArray65
	TypeUnit
	TypeCheckNonZeroSender
	TypeH256
	TypeEra
	TypeCheckMetadataHash
	TypeMetadataHashMode
	TypeOptionH256
	TypeExtra
	TypeRuntimeEvent
	TypeRuntimeError
	TypeRuntime
)

// Pallet indices of the fixture.
const (
	SystemIndex    = 0
	TimestampIndex = 2
	BalancesIndex  = 5
	SubtensorIndex = 7
)

// SignedExtensions lists the extension identifiers in extrinsic order.
var SignedExtensions = []string{
	"CheckNonZeroSender",
	"CheckSpecVersion",
	"CheckTxVersion",
	"CheckGenesis",
	"CheckMortality",
	"CheckNonce",
	"CheckWeight",
	"ChargeTransactionPayment",
	"CheckMetadataHash",
}

// Encode returns the fixture as RuntimeMetadataPrefixed of version 14 or
// 15.
func Encode(version uint8) ([]byte, error) {
	boot, err := metadata.Bootstrap()
	if err != nil {
		return nil, err
	}

	var (
		root scale.TypeID
		v    scale.Value
	)
	switch version {
	case 14:
		root, v = metadata.RootV14, v14()
	case 15:
		root, v = metadata.RootV15, v15()
	default:
		return nil, fmt.Errorf("fixture has no metadata version %d", version)
	}

	out := append(metadata.Magic[:], version)
	return scale.AppendEncode(out, v, root, boot)
}

// Hex returns Encode(version) as the 0x-hex string state_getMetadata
// answers with. It panics if the fixture cannot be encoded.
func Hex(version uint8) string {
	raw, err := Encode(version)
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(raw)
}

// RuntimeVersion is the state_getRuntimeVersion answer of the fixture.
func RuntimeVersion() metadata.RuntimeVersion {
	return metadata.RuntimeVersion{
		SpecName:           SpecName,
		ImplName:           SpecName,
		AuthoringVersion:   1,
		SpecVersion:        SpecVersion,
		ImplVersion:        1,
		TransactionVersion: TransactionVersion,
		StateVersion:       1,
		APIs:               []metadata.APIVersion{{ID: "0xbc9d89904f5b923f", Version: 1}},
	}
}

func v14() scale.Value {
	return scale.Composite(
		scale.Named("types", types()),
		scale.Named("pallets", pallets(false)),
		scale.Named("extrinsic", scale.Composite(
			scale.Named("type", scale.Uint(uint64(TypeUncheckedExtrinsic))),
			scale.Named("version", scale.Uint(4)),
			scale.Named("signed_extensions", signedExtensions()),
		)),
		scale.Named("type", scale.Uint(uint64(TypeRuntime))),
	)
}

func v15() scale.Value {
	return scale.Composite(
		scale.Named("types", types()),
		scale.Named("pallets", pallets(true)),
		scale.Named("extrinsic", scale.Composite(
			scale.Named("version", scale.Uint(4)),
			scale.Named("address_type", scale.Uint(uint64(TypeMultiAddress))),
			scale.Named("call_type", scale.Uint(uint64(TypeRuntimeCall))),
			scale.Named("signature_type", scale.Uint(uint64(TypeMultiSignature))),
			scale.Named("extra_type", scale.Uint(uint64(TypeExtra))),
			scale.Named("signed_extensions", signedExtensions()),
		)),
		scale.Named("type", scale.Uint(uint64(TypeRuntime))),
		scale.Named("apis", scale.Sequence(
			scale.Composite(
				scale.Named("name", scale.String("AccountNonceApi")),
				scale.Named("methods", scale.Sequence(scale.Composite(
					scale.Named("name", scale.String("account_nonce")),
					scale.Named("inputs", scale.Sequence(scale.Composite(
						scale.Named("name", scale.String("account")),
						scale.Named("type", scale.Uint(uint64(TypeAccountID))),
					))),
					scale.Named("output", scale.Uint(uint64(TypeU32))),
					scale.Named("docs", docs("Get current account nonce of given `AccountId`.")),
				))),
				scale.Named("docs", docs()),
			),
		)),
		scale.Named("outer_enums", scale.Composite(
			scale.Named("call_enum_type", scale.Uint(uint64(TypeRuntimeCall))),
			scale.Named("event_enum_type", scale.Uint(uint64(TypeRuntimeEvent))),
			scale.Named("error_enum_type", scale.Uint(uint64(TypeRuntimeError))),
		)),
		scale.Named("custom", scale.Composite(scale.Named("map", scale.Sequence()))),
	)
}

func signedExtensions() scale.Value {
	ext := func(name string, ty, additional uint32) scale.Value {
		return scale.Composite(
			scale.Named("identifier", scale.String(name)),
			scale.Named("type", scale.Uint(uint64(ty))),
			scale.Named("additional_signed", scale.Uint(uint64(additional))),
		)
	}
	return scale.Sequence(
		ext("CheckNonZeroSender", TypeCheckNonZeroSender, TypeUnit),
		ext("CheckSpecVersion", TypeUnit, TypeU32),
		ext("CheckTxVersion", TypeUnit, TypeU32),
		ext("CheckGenesis", TypeUnit, TypeH256),
		ext("CheckMortality", TypeEra, TypeH256),
		ext("CheckNonce", TypeCompactU32, TypeUnit),
		ext("CheckWeight", TypeUnit, TypeUnit),
		ext("ChargeTransactionPayment", TypeCompactU128, TypeUnit),
		ext("CheckMetadataHash", TypeCheckMetadataHash, TypeOptionH256),
	)
}

func types() scale.Value {
	era := make([]scale.Value, 0, 256)
	era = append(era, variant("Immortal", 0))
	for i := 1; i < 256; i++ {
		era = append(era, variant(fmt.Sprintf("Mortal%d", i), uint8(i), field("", TypeU8, "")))
	}

	return scale.Sequence(
		portable(TypeU8, nil, nil, primitive("u8")),
		portable(TypeByteArray32, nil, nil, array(32, TypeU8)),
		portable(TypeAccountID, path("sp_core", "crypto", "AccountId32"), nil,
			composite(field("", TypeByteArray32, "[u8; 32]"))),
		portable(TypeU32, nil, nil, primitive("u32")),
		portable(TypeU64, nil, nil, primitive("u64")),
		portable(TypeU128, nil, nil, primitive("u128")),
		portable(TypeCompactU128, nil, nil, compact(TypeU128)),
		portable(TypeAccountInfo, path("frame_system", "AccountInfo"), nil, composite(
			field("nonce", TypeU32, "Nonce"),
			field("consumers", TypeU32, "RefCount"),
			field("providers", TypeU32, "RefCount"),
			field("sufficients", TypeU32, "RefCount"),
			field("data", TypeAccountData, "AccountData"),
		)),
		portable(TypeAccountData, path("pallet_balances", "types", "AccountData"), nil, composite(
			field("free", TypeU128, "Balance"),
			field("reserved", TypeU128, "Balance"),
			field("frozen", TypeU128, "Balance"),
			field("flags", TypeU128, "ExtraFlags"),
		)),
		portable(TypeStakeKey, nil, nil, tuple(TypeAccountID, TypeAccountID)),
		portable(TypeBalancesCall, path("pallet_balances", "pallet", "Call"), nil, variants(
			variant("transfer_allow_death", 0,
				field("dest", TypeMultiAddress, "AccountIdLookupOf<T>"),
				field("value", TypeCompactU128, "T::Balance")),
			variant("transfer_keep_alive", 3,
				field("dest", TypeMultiAddress, "AccountIdLookupOf<T>"),
				field("value", TypeCompactU128, "T::Balance")),
		)),
		portable(TypeMultiAddress, path("sp_runtime", "multiaddress", "MultiAddress"), nil, variants(
			variant("Id", 0, field("", TypeAccountID, "AccountId")),
			variant("Index", 1, field("", TypeCompactU32, "AccountIndex")),
			variant("Raw", 2, field("", TypeBytes, "Vec<u8>")),
			variant("Address32", 3, field("", TypeByteArray32, "[u8; 32]")),
			variant("Address20", 4, field("", TypeByteArray20, "[u8; 20]")),
		)),
		portable(TypeCompactU32, nil, nil, compact(TypeU32)),
		portable(TypeBytes, nil, nil, sequence(TypeU8)),
		portable(TypeByteArray20, nil, nil, array(20, TypeU8)),
		portable(TypeSubtensorCall, path("pallet_subtensor", "pallet", "Call"), nil, variants(
			variant("add_stake", 2,
				field("hotkey", TypeAccountID, "T::AccountId"),
				field("amount_staked", TypeU64, "u64")),
		)),
		portable(TypeSystemCall, path("frame_system", "pallet", "Call"), nil, variants(
			variant("remark", 0, field("remark", TypeBytes, "Vec<u8>")),
		)),
		portable(TypeRuntimeCall, path("node_subtensor_runtime", "RuntimeCall"), nil, variants(
			variant("System", SystemIndex, field("", TypeSystemCall, "")),
			variant("Balances", BalancesIndex, field("", TypeBalancesCall, "")),
			variant("SubtensorModule", SubtensorIndex, field("", TypeSubtensorCall, "")),
		)),
		portable(TypeSystemEvent, path("frame_system", "pallet", "Event"), nil, variants(
			variant("ExtrinsicSuccess", 0),
			variant("ExtrinsicFailed", 1),
		)),
		portable(TypeBalancesEvent, path("pallet_balances", "pallet", "Event"), nil, variants(
			variant("Transfer", 2,
				field("from", TypeAccountID, "T::AccountId"),
				field("to", TypeAccountID, "T::AccountId"),
				field("amount", TypeU128, "T::Balance")),
		)),
		portable(TypeBalancesError, path("pallet_balances", "pallet", "Error"), nil, variants(
			variant("VestingBalance", 0),
			withDocs(variant("InsufficientBalance", 2), "Balance too low to send value."),
		)),
		portable(TypeU16, nil, nil, primitive("u16")),
		portable(TypeBool, nil, nil, primitive("bool")),
		portable(TypeOptionBool, path("Option"), params("T", TypeBool), variants(
			variant("None", 0),
			variant("Some", 1, field("", TypeBool, "")),
		)),
		portable(TypeUncheckedExtrinsic, path("sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"),
			append(append(params("Address", TypeMultiAddress), params("Call", TypeRuntimeCall)...),
				append(params("Signature", TypeMultiSignature), params("Extra", TypeExtra)...)...),
			composite(field("", TypeBytes, ""))),
		portable(TypeMultiSignature, path("sp_runtime", "MultiSignature"), nil, variants(
			variant("Ed25519", 0, field("", TypeByteArray64, "")),
			variant("Sr25519", 1, field("", TypeByteArray64, "")),
			variant("Ecdsa", 2, field("", TypeByteArray65, "")),
		)),
		portable(TypeByteArray64, nil, nil, array(64, TypeU8)),
		portable(TypeByteArray65, nil, nil, array(65, TypeU8)),
		portable(TypeUnit, nil, nil, tuple()),
		portable(TypeCheckNonZeroSender, path("frame_system", "extensions", "check_non_zero_sender", "CheckNonZeroSender"), nil, composite()),
		portable(TypeH256, path("primitive_types", "H256"), nil, composite(field("", TypeByteArray32, "[u8; 32]"))),
		portable(TypeEra, path("sp_runtime", "generic", "era", "Era"), nil, variants(era...)),
		portable(TypeCheckMetadataHash, path("frame_metadata_hash_extension", "CheckMetadataHash"), nil,
			composite(field("mode", TypeMetadataHashMode, "Mode"))),
		portable(TypeMetadataHashMode, path("frame_metadata_hash_extension", "Mode"), nil, variants(
			variant("Disabled", 0),
			variant("Enabled", 1),
		)),
		portable(TypeOptionH256, path("Option"), params("T", TypeByteArray32), variants(
			variant("None", 0),
			variant("Some", 1, field("", TypeByteArray32, "")),
		)),
		portable(TypeExtra, nil, nil, tuple(
			TypeCheckNonZeroSender, TypeUnit, TypeUnit, TypeUnit, TypeEra,
			TypeCompactU32, TypeUnit, TypeCompactU128, TypeCheckMetadataHash,
		)),
		portable(TypeRuntimeEvent, path("node_subtensor_runtime", "RuntimeEvent"), nil, variants(
			variant("System", SystemIndex, field("", TypeSystemEvent, "")),
			variant("Balances", BalancesIndex, field("", TypeBalancesEvent, "")),
		)),
		portable(TypeRuntimeError, path("node_subtensor_runtime", "RuntimeError"), nil, variants(
			variant("Balances", BalancesIndex, field("", TypeBalancesError, "")),
		)),
		portable(TypeRuntime, path("node_subtensor_runtime", "Runtime"), nil, composite()),
	)
}

func pallets(v15 bool) scale.Value {
	zeros := func(n int) []byte { return make([]byte, n) }
	pallet := func(name string, index uint8, storage, calls, event, errs scale.Value, constants ...scale.Value) scale.Value {
		fields := []scale.NamedValue{
			scale.Named("name", scale.String(name)),
			scale.Named("storage", storage),
			scale.Named("calls", calls),
			scale.Named("event", event),
			scale.Named("constants", scale.Sequence(constants...)),
			scale.Named("error", errs),
			scale.Named("index", scale.Uint(uint64(index))),
		}
		if v15 {
			fields = append(fields, scale.Named("docs", docs()))
		}
		return scale.Composite(fields...)
	}

	return scale.Sequence(
		pallet("System", SystemIndex,
			storage("System",
				mapEntry("Account", "Default", []string{"Blake2_128Concat"}, TypeAccountID, TypeAccountInfo, zeros(80),
					"The full account information for a particular account ID."),
				plainEntry("Number", "Default", TypeU32, zeros(4), "The current block number being processed."),
			),
			ref(TypeSystemCall), ref(TypeSystemEvent), scale.None(),
			constant("SS58Prefix", TypeU16, []byte{SS58Prefix, 0}, "The designated SS58 prefix of this chain."),
		),
		pallet("Timestamp", TimestampIndex,
			storage("Timestamp",
				plainEntry("Now", "Default", TypeU64, zeros(8), "The current time for the current block."),
			),
			scale.None(), scale.None(), scale.None(),
		),
		pallet("Balances", BalancesIndex,
			scale.None(),
			ref(TypeBalancesCall), ref(TypeBalancesEvent), ref(TypeBalancesError),
			constant("ExistentialDeposit", TypeU128, []byte{0xf4, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
				"The minimum amount required to keep an account open."),
		),
		pallet("SubtensorModule", SubtensorIndex,
			storage("SubtensorModule",
				mapEntry("Stake", "Default", []string{"Blake2_128Concat", "Identity"}, TypeStakeKey, TypeU64, zeros(8)),
				plainEntry("TotalStake", "Default", TypeU64, zeros(8)),
				mapEntry("Owner", "Optional", []string{"Blake2_128Concat"}, TypeAccountID, TypeAccountID, nil),
			),
			ref(TypeSubtensorCall), scale.None(), scale.None(),
			constant("InitialRegistrationEnabled", TypeOptionBool, []byte{1}),
		),
	)
}

func storage(prefix string, entries ...scale.Value) scale.Value {
	return scale.Some(scale.Composite(
		scale.Named("prefix", scale.String(prefix)),
		scale.Named("entries", scale.Sequence(entries...)),
	))
}

func plainEntry(name, modifier string, ty uint32, def []byte, doc ...string) scale.Value {
	return scale.Composite(
		scale.Named("name", scale.String(name)),
		scale.Named("modifier", scale.String(modifier)),
		scale.Named("type", scale.VariantTuple("Plain", scale.Uint(uint64(ty)))),
		scale.Named("default", scale.Bytes(def)),
		scale.Named("docs", docs(doc...)),
	)
}

func mapEntry(name, modifier string, hashers []string, key, value uint32, def []byte, doc ...string) scale.Value {
	hs := make([]scale.Value, len(hashers))
	for i, h := range hashers {
		hs[i] = scale.String(h)
	}
	return scale.Composite(
		scale.Named("name", scale.String(name)),
		scale.Named("modifier", scale.String(modifier)),
		scale.Named("type", scale.VariantTuple("Map", scale.Composite(
			scale.Named("hashers", scale.Sequence(hs...)),
			scale.Named("key", scale.Uint(uint64(key))),
			scale.Named("value", scale.Uint(uint64(value))),
		))),
		scale.Named("default", scale.Bytes(def)),
		scale.Named("docs", docs(doc...)),
	)
}

func ref(ty uint32) scale.Value {
	return scale.Some(scale.Composite(scale.Named("type", scale.Uint(uint64(ty)))))
}

func constant(name string, ty uint32, value []byte, doc ...string) scale.Value {
	return scale.Composite(
		scale.Named("name", scale.String(name)),
		scale.Named("type", scale.Uint(uint64(ty))),
		scale.Named("value", scale.Bytes(value)),
		scale.Named("docs", docs(doc...)),
	)
}

func portable(id uint32, path []string, params []scale.Value, def scale.Value) scale.Value {
	return scale.Composite(
		scale.Named("id", scale.Uint(uint64(id))),
		scale.Named("type", scale.Composite(
			scale.Named("path", docs(path...)),
			scale.Named("params", scale.Sequence(params...)),
			scale.Named("def", def),
			scale.Named("docs", docs()),
		)),
	)
}

func path(segments ...string) []string { return segments }

func params(name string, ty uint32) []scale.Value {
	return []scale.Value{scale.Composite(
		scale.Named("name", scale.String(name)),
		scale.Named("type", scale.Some(scale.Uint(uint64(ty)))),
	)}
}

func docs(lines ...string) scale.Value {
	out := make([]scale.Value, len(lines))
	for i, l := range lines {
		out[i] = scale.String(l)
	}
	return scale.Sequence(out...)
}

func optText(s string) scale.Value {
	if s == "" {
		return scale.None()
	}
	return scale.Some(scale.String(s))
}

func field(name string, ty uint32, typeName string) scale.Value {
	return scale.Composite(
		scale.Named("name", optText(name)),
		scale.Named("type", scale.Uint(uint64(ty))),
		scale.Named("type_name", optText(typeName)),
		scale.Named("docs", docs()),
	)
}

func variant(name string, index uint8, fields ...scale.Value) scale.Value {
	return scale.Composite(
		scale.Named("name", scale.String(name)),
		scale.Named("fields", scale.Sequence(fields...)),
		scale.Named("index", scale.Uint(uint64(index))),
		scale.Named("docs", docs()),
	)
}

func withDocs(v scale.Value, lines ...string) scale.Value {
	name, _ := v.Field("name")
	fields, _ := v.Field("fields")
	index, _ := v.Field("index")
	return scale.Composite(
		scale.Named("name", name),
		scale.Named("fields", fields),
		scale.Named("index", index),
		scale.Named("docs", docs(lines...)),
	)
}

func composite(fields ...scale.Value) scale.Value {
	return scale.VariantTuple("Composite", scale.Composite(scale.Named("fields", scale.Sequence(fields...))))
}

func variants(vs ...scale.Value) scale.Value {
	return scale.VariantTuple("Variant", scale.Composite(scale.Named("variants", scale.Sequence(vs...))))
}

func sequence(elem uint32) scale.Value {
	return scale.VariantTuple("Sequence", scale.Composite(scale.Named("type", scale.Uint(uint64(elem)))))
}

func array(n, elem uint32) scale.Value {
	return scale.VariantTuple("Array", scale.Composite(
		scale.Named("len", scale.Uint(uint64(n))),
		scale.Named("type", scale.Uint(uint64(elem))),
	))
}

func tuple(ids ...uint32) scale.Value {
	items := make([]scale.Value, len(ids))
	for i, id := range ids {
		items[i] = scale.Uint(uint64(id))
	}
	return scale.VariantTuple("Tuple", scale.Sequence(items...))
}

func primitive(name string) scale.Value {
	return scale.VariantTuple("Primitive", scale.String(name))
}

func compact(elem uint32) scale.Value {
	return scale.VariantTuple("Compact", scale.Composite(scale.Named("type", scale.Uint(uint64(elem)))))
}
