package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders flattened purchases as a CSV string.
func RenderCSV(rows []PurchaseRow) string {
	var sb strings.Builder

	sb.WriteString("store_address,tx_hash,log_index,block_number,product_id,buyer,quantity,total_price,timestamp\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%s,%s,%s,%d\n",
			r.StoreAddress,
			r.TxHash,
			r.LogIndex,
			r.BlockNumber,
			r.ProductID,
			r.Buyer,
			r.Quantity,
			r.TotalPrice,
			r.Timestamp,
		))
	}

	return sb.String()
}
