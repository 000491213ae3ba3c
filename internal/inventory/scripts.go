package inventory

// Lua scripts for atomic stock operations. Textual form is part of the
// contract (SPEC_FULL.md §6): decrement/rollback must behave exactly as
// described here regardless of which store client executes them.
const (
	// decrementScript performs the check-and-decrement for a single sku,
	// folding the per-user purchase limit into the same atomic operation
	// per the §9 open-question resolution (see DESIGN.md).
	//
	// KEYS: [1] stock_key, [2] sold_key, [3] user_count_key
	// ARGV: [1] quantity, [2] user_limit
	// Returns: remaining (>=0, OK) | 0 (SOLD_OUT) | -1 (INVALID) | -2 (LIMIT_EXCEEDED)
	decrementScript = `
		local stock_key = KEYS[1]
		local sold_key = KEYS[2]
		local user_count_key = KEYS[3]

		local qty = tonumber(ARGV[1])
		local user_limit = tonumber(ARGV[2])

		if qty == nil or qty <= 0 then
			return -1
		end

		local current_stock = tonumber(redis.call('GET', stock_key) or 0)
		if current_stock < qty then
			return 0
		end

		local user_count = tonumber(redis.call('GET', user_count_key) or 0)
		if user_limit > 0 and user_count + qty > user_limit then
			return -2
		end

		local remaining = redis.call('DECRBY', stock_key, qty)
		redis.call('INCRBY', sold_key, qty)
		redis.call('INCRBY', user_count_key, qty)

		return remaining
	`

	// rollbackScript reverses a prior decrement.
	//
	// KEYS: [1] stock_key, [2] sold_key, [3] user_count_key
	// ARGV: [1] quantity
	// Returns: new_stock (OK) | -1 (INVALID)
	rollbackScript = `
		local stock_key = KEYS[1]
		local sold_key = KEYS[2]
		local user_count_key = KEYS[3]

		local qty = tonumber(ARGV[1])
		if qty == nil or qty <= 0 then
			return -1
		end

		local new_stock = redis.call('INCRBY', stock_key, qty)
		local new_sold = redis.call('DECRBY', sold_key, qty)
		local new_user_count = redis.call('DECRBY', user_count_key, qty)

		if new_sold < 0 then
			redis.call('SET', sold_key, 0)
		end
		if new_user_count < 0 then
			redis.call('SET', user_count_key, 0)
		end

		return new_stock
	`

	// warmupScript idempotently initializes the counters for a sku.
	//
	// KEYS: [1] stock_key, [2] sold_key
	// ARGV: [1] stock
	// Returns: "OK"
	warmupScript = `
		local stock_key = KEYS[1]
		local sold_key = KEYS[2]
		local stock = tonumber(ARGV[1])

		redis.call('SET', stock_key, stock)
		redis.call('SET', sold_key, 0)

		return "OK"
	`
)
