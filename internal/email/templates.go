package email

import "fmt"

// BuildOutOfStockBody builds the HTML body for an out-of-stock alert
func BuildOutOfStockBody(sku string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2 style="color: #c0392b;">Out of stock</h2>
	<p>SKU <strong>%s</strong> has no available stock left. New order lines
	for it will fail to allocate until a batch arrives or quantities are
	corrected.</p>
</body>
</html>`, sku)
}

// BuildAllocationConfirmationBody builds the HTML body for an allocation
// confirmation
func BuildAllocationConfirmationBody(orderID, sku, batchRef string, qty int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2>Order line allocated</h2>
	<table style="width: 100%%; border-collapse: collapse;">
		<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">Order</td><td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td></tr>
		<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">SKU</td><td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td></tr>
		<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">Quantity</td><td style="padding: 8px; border-bottom: 1px solid #eee;">%d</td></tr>
		<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">Batch</td><td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td></tr>
	</table>
</body>
</html>`, orderID, sku, qty, batchRef)
}
