package database

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (number, user_id, restaurant_id, idempotency_key, total_amount, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menu_item_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $1, courier_name = $2, updated_at = NOW()
		WHERE number = $3`

	UpdateOrderDeliveredSQL = `
		UPDATE orders SET status = $1, delivered_at = NOW(), updated_at = NOW()
		WHERE number = $2`

	GetOrderByNumberSQL = `
		SELECT id, number, user_id, restaurant_id, total_amount, priority, status,
			   courier_name, created_at, updated_at, delivered_at
		FROM orders WHERE number = $1`

	GetOrderByIdempotencyKeySQL = `
		SELECT number, status, total_amount
		FROM orders WHERE idempotency_key = $1`

	GetOrderStatusSQL = `
		SELECT status FROM orders WHERE number = $1`

	GetOrderStatusHistorySQL = `
		SELECT status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = (SELECT id FROM orders WHERE number = $1)
		ORDER BY changed_at ASC`

	GetOrdersByUserSQL = `
		SELECT number, restaurant_id, total_amount, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC`

	CountOrdersTodaySQL = `
		SELECT COUNT(*) FROM orders WHERE DATE(created_at) = CURRENT_DATE`
)

// Restaurant queries
const (
	GetRestaurantCitySQL = `
		SELECT city FROM restaurants WHERE id = $1`
)

// Menu queries
const (
	GetMenuByRestaurantSQL = `
		SELECT id, restaurant_id, name, price, category, available
		FROM menu_items
		WHERE restaurant_id = $1 AND available
		ORDER BY category, name`

	GetMenuItemSQL = `
		SELECT id, restaurant_id, name, price, category, available
		FROM menu_items WHERE id = $1`
)

// Courier queries
const (
	InsertCourierSQL = `
		INSERT INTO couriers (name, city, status)
		VALUES ($1, $2, 'online')
		ON CONFLICT (name) DO UPDATE SET
			status = 'online',
			last_seen = NOW()
		RETURNING id`

	UpdateCourierStatusSQL = `
		UPDATE couriers SET status = $1, last_seen = NOW()
		WHERE name = $2`

	UpdateCourierHeartbeatSQL = `
		UPDATE couriers SET last_seen = NOW(), orders_delivered = orders_delivered + $1
		WHERE name = $2`

	GetAllCouriersSQL = `
		SELECT name, city, status, orders_delivered, last_seen, created_at
		FROM couriers
		ORDER BY created_at ASC`

	CheckCourierOnlineSQL = `
		SELECT COUNT(*) FROM couriers WHERE name = $1 AND status = 'online'`
)
