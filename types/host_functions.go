package types

// Import module names of the host interface.
//
// IMPORTANT: module names, function names and arities below are the guest ABI.
// Contracts link against them by name; a mismatch between the host and a
// contract fails at instantiation rather than at call time.
const (
	ModuleContext = "ctx"
	ModuleInt     = "int"
	ModuleBuf     = "buf"
	ModuleVec     = "vec"
	ModuleMap     = "map"
	ModuleLedger  = "ledger"
	ModuleCall    = "call"
	ModuleAuth    = "auth"
	ModuleAddress = "addr"
	ModuleCrypto  = "crypto"
	ModulePrng    = "prng"
)

// HostFunction describes one import a contract may link against. Every
// parameter and the single result are 64-bit integers on the wasm side.
type HostFunction struct {
	Module string
	Name   string
	Args   int
}

// HostFunctions is the full host interface, grouped by module.
var HostFunctions = []HostFunction{
	{ModuleContext, "obj_cmp", 2},
	{ModuleContext, "get_ledger_sequence", 0},
	{ModuleContext, "get_ledger_timestamp", 0},
	{ModuleContext, "get_ledger_network_id", 0},
	{ModuleContext, "get_current_contract_address", 0},
	{ModuleContext, "get_max_live_until_ledger", 0},
	{ModuleContext, "fail_with_error", 1},
	{ModuleContext, "log_from_linear_memory", 4},
	{ModuleContext, "contract_event", 2},

	{ModuleInt, "obj_from_u64", 1},
	{ModuleInt, "obj_to_u64", 1},
	{ModuleInt, "obj_from_i64", 1},
	{ModuleInt, "obj_to_i64", 1},
	{ModuleInt, "timepoint_obj_from_u64", 1},
	{ModuleInt, "timepoint_obj_to_u64", 1},
	{ModuleInt, "duration_obj_from_u64", 1},
	{ModuleInt, "duration_obj_to_u64", 1},
	{ModuleInt, "obj_from_u128_pieces", 2},
	{ModuleInt, "obj_to_u128_lo64", 1},
	{ModuleInt, "obj_to_u128_hi64", 1},
	{ModuleInt, "obj_from_i128_pieces", 2},
	{ModuleInt, "obj_to_i128_lo64", 1},
	{ModuleInt, "obj_to_i128_hi64", 1},
	{ModuleInt, "obj_from_u256_pieces", 4},
	{ModuleInt, "u256_val_from_be_bytes", 1},
	{ModuleInt, "u256_val_to_be_bytes", 1},
	{ModuleInt, "obj_to_u256_hi_hi", 1},
	{ModuleInt, "obj_to_u256_hi_lo", 1},
	{ModuleInt, "obj_to_u256_lo_hi", 1},
	{ModuleInt, "obj_to_u256_lo_lo", 1},
	{ModuleInt, "obj_from_i256_pieces", 4},
	{ModuleInt, "i256_val_from_be_bytes", 1},
	{ModuleInt, "i256_val_to_be_bytes", 1},
	{ModuleInt, "obj_to_i256_hi_hi", 1},
	{ModuleInt, "obj_to_i256_hi_lo", 1},
	{ModuleInt, "obj_to_i256_lo_hi", 1},
	{ModuleInt, "obj_to_i256_lo_lo", 1},
	{ModuleInt, "u256_add", 2},
	{ModuleInt, "u256_sub", 2},
	{ModuleInt, "u256_mul", 2},
	{ModuleInt, "u256_div", 2},
	{ModuleInt, "u256_rem_euclid", 2},
	{ModuleInt, "u256_pow", 2},
	{ModuleInt, "u256_shl", 2},
	{ModuleInt, "u256_shr", 2},
	{ModuleInt, "i256_add", 2},
	{ModuleInt, "i256_sub", 2},
	{ModuleInt, "i256_mul", 2},
	{ModuleInt, "i256_div", 2},
	{ModuleInt, "i256_rem_euclid", 2},
	{ModuleInt, "i256_pow", 2},
	{ModuleInt, "i256_shl", 2},
	{ModuleInt, "i256_shr", 2},

	{ModuleBuf, "bytes_new", 0},
	{ModuleBuf, "bytes_new_from_linear_memory", 2},
	{ModuleBuf, "bytes_copy_to_linear_memory", 4},
	{ModuleBuf, "bytes_copy_from_linear_memory", 4},
	{ModuleBuf, "bytes_len", 1},
	{ModuleBuf, "bytes_get", 2},
	{ModuleBuf, "bytes_put", 3},
	{ModuleBuf, "bytes_del", 2},
	{ModuleBuf, "bytes_push", 2},
	{ModuleBuf, "bytes_pop", 1},
	{ModuleBuf, "bytes_front", 1},
	{ModuleBuf, "bytes_back", 1},
	{ModuleBuf, "bytes_insert", 3},
	{ModuleBuf, "bytes_append", 2},
	{ModuleBuf, "bytes_slice", 3},
	{ModuleBuf, "string_new_from_linear_memory", 2},
	{ModuleBuf, "string_copy_to_linear_memory", 4},
	{ModuleBuf, "string_len", 1},
	{ModuleBuf, "symbol_new_from_linear_memory", 2},
	{ModuleBuf, "symbol_copy_to_linear_memory", 4},
	{ModuleBuf, "symbol_len", 1},
	{ModuleBuf, "symbol_index_in_linear_memory", 3},
	{ModuleBuf, "serialize_to_bytes", 1},
	{ModuleBuf, "deserialize_from_bytes", 1},

	{ModuleVec, "vec_new", 0},
	{ModuleVec, "vec_put", 3},
	{ModuleVec, "vec_get", 2},
	{ModuleVec, "vec_del", 2},
	{ModuleVec, "vec_len", 1},
	{ModuleVec, "vec_push_front", 2},
	{ModuleVec, "vec_pop_front", 1},
	{ModuleVec, "vec_push_back", 2},
	{ModuleVec, "vec_pop_back", 1},
	{ModuleVec, "vec_front", 1},
	{ModuleVec, "vec_back", 1},
	{ModuleVec, "vec_insert", 3},
	{ModuleVec, "vec_append", 2},
	{ModuleVec, "vec_slice", 3},
	{ModuleVec, "vec_first_index_of", 2},
	{ModuleVec, "vec_new_from_linear_memory", 2},
	{ModuleVec, "vec_unpack_to_linear_memory", 3},

	{ModuleMap, "map_new", 0},
	{ModuleMap, "map_put", 3},
	{ModuleMap, "map_get", 2},
	{ModuleMap, "map_del", 2},
	{ModuleMap, "map_len", 1},
	{ModuleMap, "map_has", 2},
	{ModuleMap, "map_key_by_pos", 2},
	{ModuleMap, "map_val_by_pos", 2},
	{ModuleMap, "map_keys", 1},
	{ModuleMap, "map_values", 1},
	{ModuleMap, "map_new_from_linear_memory", 3},
	{ModuleMap, "map_unpack_to_linear_memory", 4},

	{ModuleLedger, "put_contract_data", 3},
	{ModuleLedger, "has_contract_data", 2},
	{ModuleLedger, "get_contract_data", 2},
	{ModuleLedger, "del_contract_data", 2},
	{ModuleLedger, "extend_contract_data_ttl", 4},
	{ModuleLedger, "extend_current_contract_instance_and_code_ttl", 2},
	{ModuleLedger, "upload_wasm", 1},
	{ModuleLedger, "create_contract", 4},
	{ModuleLedger, "update_current_contract_wasm", 1},

	{ModuleCall, "call", 3},
	{ModuleCall, "try_call", 3},

	{ModuleAuth, "require_auth", 1},
	{ModuleAuth, "require_auth_for_args", 2},
	{ModuleAuth, "authorize_as_curr_contract", 1},

	{ModuleAddress, "strkey_to_address", 1},
	{ModuleAddress, "address_to_strkey", 1},
	{ModuleAddress, "get_address_from_muxed_address", 1},
	{ModuleAddress, "get_id_from_muxed_address", 1},

	{ModuleCrypto, "compute_hash_sha256", 1},
	{ModuleCrypto, "compute_hash_keccak256", 1},
	{ModuleCrypto, "verify_sig_ed25519", 3},
	{ModuleCrypto, "recover_key_ecdsa_secp256k1", 3},
	{ModuleCrypto, "verify_sig_ecdsa_secp256r1", 3},

	{ModulePrng, "prng_reseed", 1},
	{ModulePrng, "prng_bytes_new", 1},
	{ModulePrng, "prng_u64_in_inclusive_range", 2},
	{ModulePrng, "prng_vec_shuffle", 1},
}

type hostFunctionKey struct{ module, name string }

var hostFunctionIndex = func() map[hostFunctionKey]HostFunction {
	m := make(map[hostFunctionKey]HostFunction, len(HostFunctions))
	for _, f := range HostFunctions {
		m[hostFunctionKey{f.Module, f.Name}] = f
	}
	return m
}()

// LookupHostFunction finds a host function by module and name.
func LookupHostFunction(module, name string) (HostFunction, bool) {
	f, ok := hostFunctionIndex[hostFunctionKey{module, name}]
	return f, ok
}

// Reserved contract function names.
const (
	FnConstructor = "__constructor"
	FnCheckAuth   = "__check_auth"
)
