package contracts

// Router is the Uniswap V2-compatible AMM router used for quoting
// and executing shop-token swaps.
var Router = mustParse("router", routerJSON)

const routerJSON = `[
  {"type":"function","name":"getAmountsOut","inputs":[
    {"name":"amountIn","type":"uint256"},
    {"name":"path","type":"address[]"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"getAmountsIn","inputs":[
    {"name":"amountOut","type":"uint256"},
    {"name":"path","type":"address[]"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"swapExactTokensForTokens","inputs":[
    {"name":"amountIn","type":"uint256"},
    {"name":"amountOutMin","type":"uint256"},
    {"name":"path","type":"address[]"},
    {"name":"to","type":"address"},
    {"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable"}
]`
