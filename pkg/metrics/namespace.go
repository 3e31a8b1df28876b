package metrics

const namespace = "smartpark"
