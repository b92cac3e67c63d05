package contracts

// Store is the per-shop retail contract: product catalog, shop token
// reference and purchase history. Stores are deployed by the retail
// factory and must be initialized before products can be added.
var Store = mustParse("store", storeJSON)

// Store event names, used when scanning receipt logs.
const (
	EventStoreInitialized = "StoreInitialized"
	EventProductAdded     = "ProductAdded"
	EventProductPurchased = "ProductPurchased"
	EventTokensWithdrawn  = "TokensWithdrawn"
)

const storeJSON = `[
  {"type":"function","name":"initializeStore","inputs":[
    {"name":"_storeName","type":"string"},
    {"name":"_storeDescription","type":"string"},
    {"name":"_tokenName","type":"string"},
    {"name":"_tokenSymbol","type":"string"},
    {"name":"_initialTokenSupply","type":"uint256"},
    {"name":"_router","type":"address"},
    {"name":"_stableToken","type":"address"},
    {"name":"_stableLiquidity","type":"uint256"}
  ],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"getStoreInfo","inputs":[],"outputs":[
    {"name":"","type":"tuple","components":[
      {"name":"name","type":"string"},
      {"name":"description","type":"string"},
      {"name":"tokenAddress","type":"address"},
      {"name":"tokenBalance","type":"uint256"},
      {"name":"isActive","type":"bool"},
      {"name":"createdAt","type":"uint256"}
    ]}
  ],"stateMutability":"view"},
  {"type":"function","name":"addProduct","inputs":[
    {"name":"_name","type":"string"},
    {"name":"_description","type":"string"},
    {"name":"_price","type":"uint256"},
    {"name":"_stock","type":"uint256"}
  ],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"updateProduct","inputs":[
    {"name":"_productId","type":"uint256"},
    {"name":"_price","type":"uint256"},
    {"name":"_stock","type":"uint256"},
    {"name":"_isActive","type":"bool"}
  ],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"getProduct","inputs":[{"name":"_productId","type":"uint256"}],"outputs":[
    {"name":"","type":"tuple","components":[
      {"name":"id","type":"uint256"},
      {"name":"name","type":"string"},
      {"name":"description","type":"string"},
      {"name":"price","type":"uint256"},
      {"name":"stock","type":"uint256"},
      {"name":"isActive","type":"bool"}
    ]}
  ],"stateMutability":"view"},
  {"type":"function","name":"nextProductId","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"purchaseProduct","inputs":[
    {"name":"_productId","type":"uint256"},
    {"name":"_quantity","type":"uint256"}
  ],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"getPurchaseHistory","inputs":[],"outputs":[
    {"name":"","type":"tuple[]","components":[
      {"name":"productId","type":"uint256"},
      {"name":"buyer","type":"address"},
      {"name":"quantity","type":"uint256"},
      {"name":"totalPrice","type":"uint256"},
      {"name":"timestamp","type":"uint256"}
    ]}
  ],"stateMutability":"view"},
  {"type":"function","name":"getCustomerTokenBalance","inputs":[{"name":"_customer","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getContractTokenBalance","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"totalRevenue","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"distributeTokens","inputs":[
    {"name":"_customers","type":"address[]"},
    {"name":"_amounts","type":"uint256[]"}
  ],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"withdrawTokens","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"storeToken","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"owner","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"event","name":"StoreInitialized","inputs":[
    {"name":"name","type":"string","indexed":false},
    {"name":"tokenAddress","type":"address","indexed":true},
    {"name":"initialTokens","type":"uint256","indexed":false}
  ],"anonymous":false},
  {"type":"event","name":"ProductAdded","inputs":[
    {"name":"productId","type":"uint256","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"price","type":"uint256","indexed":false},
    {"name":"stock","type":"uint256","indexed":false}
  ],"anonymous":false},
  {"type":"event","name":"ProductPurchased","inputs":[
    {"name":"productId","type":"uint256","indexed":true},
    {"name":"buyer","type":"address","indexed":true},
    {"name":"quantity","type":"uint256","indexed":false},
    {"name":"totalPrice","type":"uint256","indexed":false}
  ],"anonymous":false},
  {"type":"event","name":"TokensWithdrawn","inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}
  ],"anonymous":false}
]`
