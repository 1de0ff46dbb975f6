package wasm

// Terra routes custom messages through the chain modules named by Route.
const (
	TerraRouteMarket = "market"
)

// TerraMsg is the custom message wrapper understood by Terra hosts:
// {"route":"market","msg_data":{"swap":{...}}}
type TerraMsg struct {
	Route   string       `json:"route"`
	MsgData TerraMsgData `json:"msg_data"`
}

// TerraMsgData is a union, exactly one field is set.
type TerraMsgData struct {
	Swap     *MarketSwapMsg     `json:"swap,omitempty"`
	SwapSend *MarketSwapSendMsg `json:"swap_send,omitempty"`
}

// MarketSwapMsg swaps OfferCoin on the oracle market, proceeds stay with the sender.
type MarketSwapMsg struct {
	OfferCoin Coin   `json:"offer_coin"`
	AskDenom  string `json:"ask_denom"`
}

// MarketSwapSendMsg swaps OfferCoin on the oracle market and sends the proceeds to ToAddress.
type MarketSwapSendMsg struct {
	ToAddress string `json:"to_address"`
	OfferCoin Coin   `json:"offer_coin"`
	AskDenom  string `json:"ask_denom"`
}

func NewMarketSwapMsg(offer Coin, askDenom string) CosmosMsg {
	return CosmosMsg{
		Custom: &TerraMsg{
			Route: TerraRouteMarket,
			MsgData: TerraMsgData{
				Swap: &MarketSwapMsg{OfferCoin: offer, AskDenom: askDenom},
			},
		},
	}
}

func NewMarketSwapSendMsg(toAddress string, offer Coin, askDenom string) CosmosMsg {
	return CosmosMsg{
		Custom: &TerraMsg{
			Route: TerraRouteMarket,
			MsgData: TerraMsgData{
				SwapSend: &MarketSwapSendMsg{ToAddress: toAddress, OfferCoin: offer, AskDenom: askDenom},
			},
		},
	}
}
