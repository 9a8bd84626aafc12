package state

// Event topics published on the in-process bus. The cart publishes two
// names because historical views subscribed under either one.
const (
	EventCartUpdated       = "cart:updated"
	EventCartChanged       = "cartChanged"
	EventFavoritesChanged  = "favoritesChanged"
	EventComparisonChanged = "comparisonChanged"
)

// Collection names accepted by Store.Subscribe.
const (
	CollectionCart       = "cart"
	CollectionFavorites  = "favorites"
	CollectionComparison = "comparison"
)
