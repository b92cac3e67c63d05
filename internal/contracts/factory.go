package contracts

// Factory is the retail factory that deploys store contracts and
// records the store-to-owner mapping. The address of a freshly
// created store is only observable through the StoreDeployed event,
// never through the call's return value.
var Factory = mustParse("factory", factoryJSON)

// EventStoreDeployed is emitted by the factory on store creation.
const EventStoreDeployed = "StoreDeployed"

const factoryJSON = `[
  {"type":"function","name":"createStore","inputs":[],"outputs":[{"name":"storeAddress","type":"address"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"getAllStores","inputs":[],"outputs":[{"name":"","type":"address[]"}],"stateMutability":"view"},
  {"type":"function","name":"getAllStoresLength","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getStoresByOwner","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"address[]"}],"stateMutability":"view"},
  {"type":"function","name":"storeToOwner","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"event","name":"StoreDeployed","inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"store","type":"address","indexed":true}
  ],"anonymous":false}
]`
