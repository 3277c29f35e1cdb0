package cart

import (
	"math"
	"strconv"
	"strings"

	"storefront-cart/internal/metadata"
	"storefront-cart/internal/pricing"

	"github.com/tidwall/gjson"
)

var imageObjectKeys = []string{"secure_url", "url", "src", "path", "href", "image", "imageUrl"}

// Normalizer turns whatever cart shape the API returns into a Snapshot.
// Server cart payloads are inconsistent between endpoints and releases, so
// every field is read through a chain of candidate paths.
type Normalizer struct {
	meta *metadata.Cache
}

func NewNormalizer(meta *metadata.Cache) *Normalizer {
	return &Normalizer{meta: meta}
}

// Normalize decodes raw. previous holds the lines currently shown; a line
// missing its name, price, image or installation fee inherits it from the
// previous line with the same id or product id, then from the metadata
// cache, then from the fallback.
func (n *Normalizer) Normalize(raw []byte, previous []Item) Snapshot {
	payload := gjson.ParseBytes(raw)
	if !truthy(payload) {
		return Snapshot{Items: []Item{}, Totals: pricing.ComputeTotals([]Item{}, pricing.Overrides{})}
	}

	root := firstTruthy(payload.Get("data"), payload.Get("cart"), payload)
	cartData := firstTruthy(root.Get("cart"), root)

	source := firstTruthy(
		cartData.Get("items"),
		cartData.Get("cartItems"),
		cartData.Get("products"),
		root.Get("items"),
	)
	if !source.IsArray() && cartData.IsArray() {
		source = cartData
	}

	items := []Item{}
	if source.IsArray() {
		for i, raw := range source.Array() {
			items = append(items, n.normalizeItem(raw, i, previous))
		}
	}

	return Snapshot{
		ID:     n.cartID(payload, root, cartData),
		Items:  items,
		Totals: n.totals(payload, cartData, items),
	}
}

func (n *Normalizer) normalizeItem(item gjson.Result, index int, previous []Item) Item {
	if !item.IsObject() {
		item = gjson.Parse("{}")
	}

	product := firstTruthy(item.Get("product"), item.Get("productId"), item.Get("item"))
	if !product.IsObject() {
		product = gjson.Parse("{}")
	}

	productID := firstID(product.Get("_id"), product.Get("id"), item.Get("productId"), item.Get("id"))
	if productID == "" {
		productID = "product-" + strconv.Itoa(index)
	}
	itemID := firstID(item.Get("_id"), item.Get("id"), item.Get("cartItemId"))
	if itemID == "" {
		itemID = productID
	}

	quantity := 1
	if q, ok := number(first(item.Get("quantity"), item.Get("qty"), item.Get("count"))); ok && q >= 1 {
		quantity = int(q)
	}

	prev, hasPrev := findPrevious(previous, itemID, productID)
	cached, hasCached := n.meta.Get(productID)

	price, priceOK := sanitize(first(
		item.Get("unitPrice"),
		item.Get("priceAfterDiscount"),
		product.Get("priceAfterDiscount"),
		product.Get("discountedPrice"),
		product.Get("price"),
		item.Get("price"),
	))
	if (!priceOK || price <= 0) && hasPrev {
		price, priceOK = prev.Price, true
	}
	if (!priceOK || price <= 0) && hasCached && cached.Price != nil {
		price, priceOK = *cached.Price, true
	}
	if !priceOK || price < 0 {
		price = 0
	}

	name := firstString(
		stringOf(item.Get("name")),
		stringOf(product.Get("name")),
		stringOf(item.Get("productName")),
	)
	if name == "" && hasPrev {
		name = prev.Name
	}
	if name == "" && hasCached {
		name = cached.Name
	}
	if name == "" {
		name = FallbackName
	}

	image := resolveImage(firstTruthy(
		product.Get("image"),
		product.Get("mainImage"),
		product.Get("thumbnail"),
		item.Get("image"),
	), product)
	if (image == "" || image == FallbackImage) && hasPrev && prev.Image != "" {
		image = prev.Image
	}
	if (image == "" || image == FallbackImage) && hasCached && cached.Image != "" {
		image = cached.Image
	}
	if image == "" {
		image = FallbackImage
	}

	installation, installationOK := sanitize(first(
		item.Get("installationPrice"),
		item.Get("installationFee"),
		product.Get("installationPrice"),
		product.Get("installation_price"),
		product.Get("installationFee"),
	))
	if !installationOK || installation < 0 {
		switch {
		case hasPrev:
			installation = prev.InstallationPrice
		case hasCached && cached.InstallationPrice != nil:
			installation = *cached.InstallationPrice
		default:
			installation = 0
		}
	}

	stock := DefaultStock
	if s, ok := number(first(
		product.Get("quantity"),
		item.Get("stock"),
		item.Get("countInStock"),
		item.Get("inventory"),
		item.Get("availableQuantity"),
		product.Get("stock"),
		product.Get("countInStock"),
		product.Get("inventory"),
		product.Get("availableQuantity"),
	)); ok && s >= 0 {
		stock = int(s)
	}

	originalPrice := price
	if v, ok := sanitize(first(
		product.Get("price"),
		item.Get("originalPrice"),
		item.Get("price.original"),
		item.Get("price.before"),
		item.Get("regularPrice"),
		item.Get("basePrice"),
		product.Get("originalPrice"),
		product.Get("regularPrice"),
		product.Get("basePrice"),
	)); ok && v > 0 {
		originalPrice = v
	}

	var salePrice *float64
	if v, ok := sanitize(first(
		item.Get("unitPrice"),
		product.Get("priceAfterDiscount"),
		item.Get("priceAfterDiscount"),
		item.Get("salePrice"),
		item.Get("discountedPrice"),
		item.Get("price.sale"),
		item.Get("price.discounted"),
		product.Get("salePrice"),
		product.Get("discountedPrice"),
	)); ok && v > 0 {
		salePrice = pricing.Float(v)
	}

	n.backfill(productID, name, price, image, installation)

	return Item{
		ID:                itemID,
		ProductID:         productID,
		Quantity:          quantity,
		Price:             price,
		OriginalPrice:     originalPrice,
		SalePrice:         salePrice,
		Name:              name,
		Image:             image,
		InstallationPrice: installation,
		Stock:             stock,
	}
}

func (n *Normalizer) backfill(productID, name string, price float64, image string, installation float64) {
	update := metadata.Product{}
	if name != FallbackName {
		update.Name = name
	}
	if price > 0 {
		update.Price = pricing.Float(price)
	}
	if image != FallbackImage {
		update.Image = image
	}
	if installation >= 0 {
		update.InstallationPrice = pricing.Float(installation)
	}
	n.meta.Merge(productID, update)
}

// totals trusts the server's subtotal only when it is non-negative and
// agrees with the line sum within max(0.5, 1%); otherwise the line sum
// stands. Shipping and installation overrides are taken when non-negative,
// and a positive declared total replaces only the total.
func (n *Normalizer) totals(payload, cartData gjson.Result, items []Item) pricing.Totals {
	computed := pricing.ComputeTotals(items, pricing.Overrides{})
	out := pricing.Totals{
		Subtotal:          computed.Subtotal,
		InstallationPrice: computed.InstallationPrice,
	}

	if v, ok := sanitize(first(
		cartData.Get("subtotal"),
		cartData.Get("subTotal"),
		cartData.Get("totalPrice"),
		payload.Get("subtotal"),
		payload.Get("subTotal"),
	)); ok {
		tolerance := math.Max(0.5, computed.Subtotal*0.01)
		if v >= 0 && (computed.Subtotal == 0 || math.Abs(v-computed.Subtotal) <= tolerance) {
			out.Subtotal = v
		}
	}

	if v, ok := sanitize(first(
		cartData.Get("shipping"),
		cartData.Get("shippingCost"),
		cartData.Get("shippingPrice"),
		payload.Get("shipping"),
		payload.Get("shippingPrice"),
	)); ok && v >= 0 {
		out.Shipping = v
	}

	if v, ok := sanitize(first(
		cartData.Get("installationPrice"),
		cartData.Get("installation"),
		cartData.Get("installationFee"),
		cartData.Get("installation_price"),
		payload.Get("installationPrice"),
		payload.Get("installation"),
	)); ok && v >= 0 {
		out.InstallationPrice = v
	}

	if v, ok := sanitize(first(
		cartData.Get("totalPrice"),
		cartData.Get("total"),
		cartData.Get("totalValue"),
		cartData.Get("grandTotal"),
		payload.Get("total"),
		payload.Get("totalPrice"),
	)); ok && v > 0 {
		out.Total = v
		return out
	}

	out.Total = out.Subtotal + out.Shipping + out.InstallationPrice
	return out
}

func (n *Normalizer) cartID(payload, root, cartData gjson.Result) string {
	return firstID(
		cartData.Get("_id"),
		cartData.Get("id"),
		root.Get("cartId"),
		root.Get("id"),
		payload.Get("cartId"),
	)
}

func findPrevious(previous []Item, itemID, productID string) (Item, bool) {
	for _, item := range previous {
		if item.ID == itemID || item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// resolveImage accepts a URL string, an object carrying one, or an array of
// either; product.images is consulted when the primary candidate is empty.
func resolveImage(candidate, product gjson.Result) string {
	if src := imageFrom(candidate); src != "" {
		return src
	}
	if images := product.Get("images"); images.IsArray() {
		if src := imageFrom(images); src != "" {
			return src
		}
	}
	return FallbackImage
}

func imageFrom(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return strings.TrimSpace(v.Str)
	case v.IsArray():
		for _, el := range v.Array() {
			if src := imageFrom(el); src != "" {
				return src
			}
		}
	case v.IsObject():
		for _, key := range imageObjectKeys {
			if field := v.Get(key); field.Type == gjson.String && strings.TrimSpace(field.Str) != "" {
				return strings.TrimSpace(field.Str)
			}
		}
	}
	return ""
}

// first is the first present, non-null result.
func first(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// firstTruthy skips absent, null, false, zero and empty-string results.
func firstTruthy(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if truthy(r) {
			return r
		}
	}
	return gjson.Result{}
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0 && !math.IsNaN(r.Num)
	case gjson.String:
		return r.Str != ""
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}

// firstID takes the first scalar, non-empty candidate as an id string.
func firstID(results ...gjson.Result) string {
	for _, r := range results {
		switch r.Type {
		case gjson.String:
			if r.Str != "" {
				return r.Str
			}
		case gjson.Number:
			return r.Raw
		}
	}
	return ""
}

func stringOf(r gjson.Result) string {
	if r.Type == gjson.String {
		return strings.TrimSpace(r.Str)
	}
	return ""
}

// sanitize reads a price-like value: numbers as is, strings through
// pricing.SanitizePrice. Objects, arrays and booleans are not prices.
func sanitize(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return pricing.SanitizePrice(r.Num)
	case gjson.String:
		return pricing.SanitizePrice(r.Str)
	}
	return 0, false
}

// number reads a count: numbers and numeric strings.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, !math.IsNaN(r.Num) && !math.IsInf(r.Num, 0)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
