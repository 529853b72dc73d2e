package events

import "github.com/hamba/avro/v2"

const orderPlacedSchemaV1 = `{
  "type": "record",
  "name": "OrderPlacedV1",
  "namespace": "storefront.orders",
  "fields": [
    {"name": "order_number", "type": "string"},
    {"name": "user_id", "type": "long"},
    {"name": "subtotal", "type": "double"},
    {"name": "discount", "type": "double"},
    {"name": "shipping", "type": "double"},
    {"name": "tax", "type": "double"},
    {"name": "total", "type": "double"},
    {"name": "currency", "type": "string"},
    {"name": "coupon_code", "type": "string"},
    {"name": "items", "type": {"type": "array", "items": {
      "type": "record",
      "name": "OrderPlacedItemV1",
      "fields": [
        {"name": "product_id", "type": "long"},
        {"name": "name", "type": "string"},
        {"name": "unit_price", "type": "double"},
        {"name": "quantity", "type": "int"}
      ]
    }}},
    {"name": "placed_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

const cartSyncedSchemaV1 = `{
  "type": "record",
  "name": "CartSyncedV1",
  "namespace": "storefront.cart",
  "fields": [
    {"name": "user_id", "type": "long"},
    {"name": "cart_lines", "type": "int"},
    {"name": "wishlist_items", "type": "int"},
    {"name": "skipped", "type": "int"},
    {"name": "source", "type": "string"},
    {"name": "synced_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

var (
	orderPlacedSchema = avro.MustParse(orderPlacedSchemaV1)
	cartSyncedSchema  = avro.MustParse(cartSyncedSchemaV1)
)
